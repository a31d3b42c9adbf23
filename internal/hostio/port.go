package hostio

import (
	"fmt"
	"net"
)

// checkPortAvailable probes TCP port availability by attempting to
// bind and immediately release it, grounded on the teacher's
// executor.Executor.CheckPortAvailable safety check (pkg/executor,
// used from pkg/operation/executor.go's port_available SafetyCheck).
func checkPortAvailable(port int) (bool, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false, nil
	}
	_ = ln.Close()
	return true, nil
}
