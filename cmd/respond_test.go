package cmd

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/allbin/go-m3d"
	"github.com/allbin/go-m3d/serial"
)

type scriptedReader struct {
	lines []string
	err   error
}

func (r *scriptedReader) ReadLine() ([]byte, error) {
	if len(r.lines) == 0 {
		if r.err != nil {
			return nil, r.err
		}
		return nil, nil
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return []byte(line), nil
}

func TestWaitOK(t *testing.T) {
	r := &scriptedReader{lines: []string{"wait\n", "", "T:21.0 B:20.0\n", "ok\n", "next\n"}}
	var echoed []string
	lines, err := waitOK(r, 3, func(s string) { echoed = append(echoed, s) })
	require.NoError(t, err)
	require.Equal(t, []string{"wait", "T:21.0 B:20.0", "ok"}, lines)
	require.Equal(t, lines, echoed)
	require.Equal(t, []string{"next\n"}, r.lines)
}

func TestWaitOKWithPayload(t *testing.T) {
	lines, err := waitOK(&scriptedReader{lines: []string{"ok T:21.0\n"}}, 1, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"ok T:21.0"}, lines)
}

func TestWaitOKPrinterError(t *testing.T) {
	_, err := waitOK(&scriptedReader{lines: []string{"Error:Checksum mismatch\n"}}, 1, nil)
	require.ErrorIs(t, err, errPrinterResponse)
	require.Contains(t, err.Error(), "Checksum mismatch")
}

func TestWaitOKIdle(t *testing.T) {
	_, err := waitOK(&scriptedReader{lines: []string{"", "", ""}}, 3, nil)
	require.ErrorIs(t, err, errNoResponse)
}

func TestWaitOKReadError(t *testing.T) {
	readErr := errors.New("unplugged")
	lines, err := waitOK(&scriptedReader{lines: []string{"wait\n"}, err: readErr}, 5, nil)
	require.ErrorIs(t, err, readErr)
	require.Equal(t, []string{"wait"}, lines)
}

func TestIdleReads(t *testing.T) {
	require.Equal(t, 15, idleReads(30*time.Second, 2*time.Second))
	require.Equal(t, 1, idleReads(time.Second, 2*time.Second))
	require.Equal(t, 1, idleReads(time.Second, 0))
}

func TestCommandLines(t *testing.T) {
	lines, err := commandLines(strings.NewReader("; start\nG28 ; home\n\n   \nG1 X10\r\nM104 S200\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"G28", "G1 X10", "M104 S200"}, lines)
}

func TestFilterPorts(t *testing.T) {
	ports := []serial.PortDetails{
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "03eb", PID: "2404", SerialNumber: "X1"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"},
		{Name: "/dev/ttyS0"},
	}
	sig := m3d.M3DSignature

	printers := filterPorts(ports, sig, false)
	require.Len(t, printers, 1)
	require.Equal(t, "/dev/ttyACM0", printers[0].Name)
	require.Len(t, filterPorts(ports, sig, true), 3)

	table := renderTable(ports, sig)
	require.Contains(t, table, "Found 3 port(s)")
	require.Contains(t, table, "/dev/ttyACM0")

	choices := portChoices(printers)
	require.Equal(t, m3d.AutoPort, choices[0].Name)
	require.Equal(t, "/dev/ttyACM0", choices[1].Name)
}

func TestSetupFailurePrintedOnce(t *testing.T) {
	require.True(t, rootCmd.SilenceErrors, "cobra must not print errors itself")

	rep, ok := cliReporter().(m3d.ReporterFuncs)
	require.True(t, ok)
	require.Nil(t, rep.OnSetupFailed, "setup errors are printed by Execute")

	err := &m3d.SetupError{State: m3d.StateProbing, Port: "/dev/ttyACM0", Err: m3d.ErrHandshake}
	var out strings.Builder
	printError(&out, err)
	require.Equal(t, 1, strings.Count(out.String(), err.Error()))
}
