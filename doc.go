// Package m3d connects to Micro 3D printers over USB serial and presents them
// as a plain line oriented connection to a G-code host.
//
// The printer starts in a bootloader that only understands a handful of
// single byte commands. Open finds the printer by its USB signature, asks it
// to jump to its firmware, and reopens the port once it answers in firmware
// mode:
//
//	conn, err := m3d.Open(ctx, m3d.AutoPort, 0, 2*time.Second,
//	    m3d.WithLogger(logger),
//	    m3d.WithMaxModeSwitches(3),
//	)
//	if err != nil {
//	    var setup *m3d.SetupError
//	    if errors.As(err, &setup) {
//	        log.Printf("failed while %s on %s", setup.State, setup.Port)
//	    }
//	    return err
//	}
//	defer conn.Close()
//
// Lines written with WriteLine are encoded into binary frames by the gcode
// package. Lines read with ReadLine are the printer's ASCII responses.
//
// Commands can be expanded or replaced on the way out with a Pipeline and a
// rewrite.Transformer:
//
//	p := &m3d.Pipeline{Transformer: rewrite.New(rewrite.ZigZag()), Conn: conn}
//	_, err = p.SendLine("G1 X1.0000 F1946")
//
// # Errors
//
// Setup failures are *SetupError values wrapping one of ErrDeviceNotFound,
// ErrOpenFailed or ErrHandshake. Per call failures wrap ErrTransmission or
// ErrRead and do not close the connection.
package m3d
