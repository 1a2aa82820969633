package scan

import "github.com/shazow/wifiscan/wifi"

func newProcessStrategy(m Method, scanner wifi.Scanner, opts Options) (Strategy, error) {
	var (
		s   Strategy
		err error
	)
	switch m {
	case MethodPipe:
		s, err = NewPipe(scanner, opts)
	case MethodSignal:
		s, err = NewSignal(scanner, opts)
	case MethodForkedSHM:
		s, err = NewForkedSHM(scanner, opts)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
