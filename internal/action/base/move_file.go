package base

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
)

const KindMoveFile action.Kind = "move_file"

func init() {
	action.Register(KindMoveFile, func() action.Unmarshaler { return &MoveFile{} })
}

// MoveFile relocates a file from Src to Dst, used by the unpack phase
// to move a fetched-and-verified archive from its temporary staging
// path into the final install tree.
type MoveFile struct {
	action.Base
	Src, Dst string
}

func NewMoveFile(src, dst string) *MoveFile {
	m := &MoveFile{Src: src, Dst: dst}
	m.Base = action.NewBase(KindMoveFile)
	return m
}

func (m *MoveFile) TracingSynopsis() string {
	return fmt.Sprintf("move %s to %s", m.Src, m.Dst)
}
func (m *MoveFile) Reversibility() action.Reversibility { return action.ReversibilityLossless }
func (m *MoveFile) ParallelSafe() bool                  { return false }
func (m *MoveFile) Children() []action.Action           { return nil }

func (m *MoveFile) PlannedDescriptions() ([]action.Description, error) {
	if err := m.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Move %s to %s", m.Src, m.Dst))}, nil
}

func (m *MoveFile) ExecutedDescriptions() ([]action.Description, error) {
	if err := m.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Move %s back to %s", m.Dst, m.Src))}, nil
}

func (m *MoveFile) TryPlan(ctx context.Context) error {
	exists, err := Host.FileExists(m.Src)
	if err != nil {
		return action.NewError(action.TagPlanConflict, m.TracingSynopsis(), err)
	}
	if !exists {
		return action.NewError(action.TagPlanConflict, m.TracingSynopsis(), fmt.Errorf("source %s does not exist", m.Src))
	}
	return m.MarkPlanned()
}

func (m *MoveFile) TryExecute(ctx context.Context) error {
	if err := m.RequirePlanned(); err != nil {
		return err
	}
	if err := Host.Rename(m.Src, m.Dst); err != nil {
		return action.NewError(action.TagActionFailed, m.TracingSynopsis(), err)
	}
	return m.MarkCompleted()
}

func (m *MoveFile) TryRevert(ctx context.Context) error {
	if err := m.RequireCompleted(); err != nil {
		return err
	}
	if err := Host.Rename(m.Dst, m.Src); err != nil {
		return action.NewError(action.TagRevertFailed, m.TracingSynopsis(), err)
	}
	return m.MarkReverted()
}

type moveFileFields struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

func (m *MoveFile) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(moveFileFields{m.Src, m.Dst})
}

func (m *MoveFile) UnmarshalFields(data json.RawMessage) error {
	var f moveFileFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	m.Src, m.Dst = f.Src, f.Dst
	return nil
}
