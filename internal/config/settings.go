// Package config resolves installer settings from CLI flags, their
// NIX_INSTALLER_<NAME> environment mirrors, and an optional on-disk
// YAML settings file, in that precedence order (flag > env > file >
// built-in default). Grounded on original_source/src/settings.rs's
// CommonSettings, translated from clap's env-mirrored flags to cobra's.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// InitSystem is the target init supervisor a configure-init-service
// action will target, matching spec.md §4.B's per-supervisor variants.
type InitSystem string

const (
	InitSystemNone       InitSystem = "none"
	InitSystemSystemd    InitSystem = "systemd"
	InitSystemLaunchd    InitSystem = "launchd"
	InitSystemSupervisor InitSystem = "supervisor"
)

// DefaultBuildGroupName is the default Nix build group name on every
// supported OS.
const DefaultBuildGroupName = "nixbld"

// Settings are the common, planner-independent knobs from spec.md's
// "resolved settings used" (Plan field) and original_source's
// CommonSettings.
type Settings struct {
	ModifyProfile      bool       `yaml:"modify_profile"`
	NixBuildGroupName  string     `yaml:"nix_build_group_name"`
	NixBuildGroupID    uint32     `yaml:"nix_build_group_id"`
	NixBuildUserPrefix string     `yaml:"nix_build_user_prefix"`
	NixBuildUserIDBase uint32     `yaml:"nix_build_user_id_base"`
	NixBuildUserCount  uint32     `yaml:"nix_build_user_count"`
	SSLCertFile        string     `yaml:"ssl_cert_file,omitempty"`
	ExtraConf          []string   `yaml:"extra_conf,omitempty"`
	Force              bool       `yaml:"force"`
	SkipNixConf        bool       `yaml:"skip_nix_conf"`
	AddChannel         bool       `yaml:"add_channel"`
	Init               InitSystem `yaml:"init"`
	NoConfirm          bool       `yaml:"no_confirm"`
	StartDaemon        bool       `yaml:"start_daemon"`
	ReceiptPath        string     `yaml:"receipt_path,omitempty"`
	LogFormat          string     `yaml:"log_format,omitempty"`
	Verbosity          int        `yaml:"-"`
}

// Default returns the architecture/OS-appropriate default settings,
// mirroring CommonSettings::default().
func Default() Settings {
	prefix := "nixbld"
	groupID := uint32(30000)
	userIDBase := uint32(30000)
	initSystem := InitSystemSystemd
	if runtime.GOOS == "darwin" {
		prefix = "_nixbld"
		groupID = 350
		userIDBase = 350
		initSystem = InitSystemLaunchd
	}
	return Settings{
		ModifyProfile:      true,
		NixBuildGroupName:  DefaultBuildGroupName,
		NixBuildGroupID:    groupID,
		NixBuildUserPrefix: prefix,
		NixBuildUserIDBase: userIDBase,
		NixBuildUserCount:  32,
		Force:              false,
		SkipNixConf:        false,
		AddChannel:         false,
		Init:               initSystem,
		NoConfirm:          false,
		StartDaemon:        true,
		ReceiptPath:        "/nix/receipt.json",
		LogFormat:          "compact",
	}
}

// envBindings is the NIX_INSTALLER_<NAME> table from spec.md §6, mapped
// to a setter closure per field.
type envBinding struct {
	name   string
	assign func(s *Settings, raw string) error
}

var envBindings = []envBinding{
	{"NIX_INSTALLER_MODIFY_PROFILE", boolBinding(func(s *Settings) *bool { return &s.ModifyProfile })},
	{"NIX_INSTALLER_NIX_BUILD_GROUP_NAME", stringBinding(func(s *Settings) *string { return &s.NixBuildGroupName })},
	{"NIX_INSTALLER_NIX_BUILD_GROUP_ID", uint32Binding(func(s *Settings) *uint32 { return &s.NixBuildGroupID })},
	{"NIX_INSTALLER_NIX_BUILD_USER_PREFIX", stringBinding(func(s *Settings) *string { return &s.NixBuildUserPrefix })},
	{"NIX_INSTALLER_NIX_BUILD_USER_ID_BASE", uint32Binding(func(s *Settings) *uint32 { return &s.NixBuildUserIDBase })},
	{"NIX_INSTALLER_NIX_BUILD_USER_COUNT", uint32Binding(func(s *Settings) *uint32 { return &s.NixBuildUserCount })},
	{"NIX_INSTALLER_SSL_CERT_FILE", stringBinding(func(s *Settings) *string { return &s.SSLCertFile })},
	{"NIX_INSTALLER_FORCE", boolBinding(func(s *Settings) *bool { return &s.Force })},
	{"NIX_INSTALLER_SKIP_NIX_CONF", boolBinding(func(s *Settings) *bool { return &s.SkipNixConf })},
	{"NIX_INSTALLER_ADD_CHANNEL", boolBinding(func(s *Settings) *bool { return &s.AddChannel })},
	{"NIX_INSTALLER_INIT", func(s *Settings, raw string) error {
		s.Init = InitSystem(raw)
		return nil
	}},
	{"NIX_INSTALLER_NO_CONFIRM", boolBinding(func(s *Settings) *bool { return &s.NoConfirm })},
	{"NIX_INSTALLER_START_DAEMON", boolBinding(func(s *Settings) *bool { return &s.StartDaemon })},
	{"NIX_INSTALLER_RECEIPT_PATH", stringBinding(func(s *Settings) *string { return &s.ReceiptPath })},
	{"NIX_INSTALLER_LOG_FORMAT", stringBinding(func(s *Settings) *string { return &s.LogFormat })},
}

func stringBinding(field func(*Settings) *string) func(*Settings, string) error {
	return func(s *Settings, raw string) error {
		*field(s) = raw
		return nil
	}
}

func boolBinding(field func(*Settings) *bool) func(*Settings, string) error {
	return func(s *Settings, raw string) error {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parsing bool: %w", err)
		}
		*field(s) = v
		return nil
	}
}

func uint32Binding(field func(*Settings) *uint32) func(*Settings, string) error {
	return func(s *Settings, raw string) error {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return fmt.Errorf("parsing uint32: %w", err)
		}
		*field(s) = uint32(v)
		return nil
	}
}

// ApplyEnv overlays any set NIX_INSTALLER_<NAME> environment variables
// onto s, in the precedence order documented on Settings' doc comment
// (env overrides the built-in default, but a flag explicitly passed on
// the command line still wins -- callers apply ApplyEnv before parsing
// flags with cobra so cobra's own flag values take final precedence).
func (s *Settings) ApplyEnv() error {
	for _, b := range envBindings {
		raw, ok := os.LookupEnv(b.name)
		if !ok || raw == "" {
			continue
		}
		if err := b.assign(s, raw); err != nil {
			return fmt.Errorf("%s: %w", b.name, err)
		}
	}
	if extra, ok := os.LookupEnv("NIX_INSTALLER_EXTRA_CONF"); ok && extra != "" {
		s.ExtraConf = append(s.ExtraConf, strings.Split(extra, "\n")...)
	}
	return nil
}

// LoadFile merges a YAML settings file into s (file values fill in
// only what ApplyEnv/flags haven't already set is out of scope here --
// LoadFile is meant to be called first, as the lowest-precedence
// layer, then overlaid by ApplyEnv and flag parsing).
func LoadFile(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("reading settings file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	return s, nil
}

// Validate checks cross-field invariants original_source enforces via
// clap's `conflicts_with` and manual checks.
func (s *Settings) Validate() error {
	if s.SkipNixConf && len(s.ExtraConf) > 0 {
		return fmt.Errorf("skip_nix_conf conflicts with extra_conf")
	}
	if s.NixBuildUserCount == 0 {
		return fmt.Errorf("nix_build_user_count must be at least 1")
	}
	switch s.Init {
	case InitSystemNone, InitSystemSystemd, InitSystemLaunchd, InitSystemSupervisor:
	default:
		return fmt.Errorf("unknown init system %q", s.Init)
	}
	return nil
}
