//go:build !linux

package serial

func openNative(device string, config Config) (Port, error) {
	return nil, ErrNativeUnsupported
}
