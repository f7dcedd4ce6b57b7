package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arcan-shmif/netbridge/internal/bridge"
	"github.com/arcan-shmif/netbridge/internal/isolator"
	"github.com/arcan-shmif/netbridge/internal/trace"
)

// options is the parsed CLI surface, filled in by parseArgs. flag.FlagSet
// cannot express this grammar: "-s" alone consumes three trailing
// positional operands, "-l" optionally consumes a host then a whole
// "-exec bin arg..." tail, and the no-flag form is itself either a
// "keystore" subcommand or the outbound client's own positional
// operands. apply_commandline() in the original walks argv by hand for
// the same reason; this is that walk translated into Go.
type options struct {
	mode bridge.Mode

	connpoint string
	host      string
	port      int

	inheritedFD int

	listenPort int
	listenHost string
	execBin    string
	execArgs   []string

	single      bool
	noRedirect  bool
	retries     int
	traceGroups trace.Group

	authPreauth int
	authSet     bool

	keystoreCmd  bool
	keystoreDir  string
	keystoreTag  string
	keystoreHost string
	keystorePort int

	// outbound (no-mode) positional form
	outboundSpec string
	hasOutbound  bool
}

func defaultOptions() options {
	return options{
		retries: -1, // unbounded, matching the original's default
	}
}

// parseArgs mirrors apply_commandline()/apply_keystore_command(): a
// manual left-to-right scan of argv, since the grammar mixes
// flag-with-trailing-positionals ("-s cp host port") with a bare
// subcommand ("keystore ...") and a fallback positional form
// ("[tag@]host [port]").
func parseArgs(argv []string) (options, error) {
	opt := defaultOptions()

	if len(argv) > 0 && argv[0] == "keystore" {
		return parseKeystoreArgs(argv[1:])
	}

	i := 0
	modeSet := false
	setMode := func(m bridge.Mode) error {
		if modeSet {
			return fmt.Errorf("mixed or multiple -s/-S/-l arguments")
		}
		modeSet = true
		opt.mode = m
		return nil
	}

	for i < len(argv) {
		a := argv[i]
		if len(a) == 0 || a[0] != '-' {
			break
		}

		switch a {
		case "-d":
			if i+1 >= len(argv) {
				return opt, fmt.Errorf("-d without trace value argument")
			}
			i++
			g, err := trace.Parse(argv[i])
			if err != nil {
				return opt, err
			}
			opt.traceGroups = g
			i++

		case "-s":
			if err := setMode(bridge.ModeForwardLocal); err != nil {
				return opt, err
			}
			if i+3 >= len(argv) {
				return opt, fmt.Errorf("-s requires connpoint host port")
			}
			opt.connpoint = argv[i+1]
			if !isAlnum(opt.connpoint) {
				return opt, fmt.Errorf("invalid character in connpoint [a-Z,0-9]")
			}
			opt.host = argv[i+2]
			opt.port = 0
			if p, err := strconv.Atoi(argv[i+3]); err == nil {
				opt.port = p
			} else {
				return opt, fmt.Errorf("invalid port %q", argv[i+3])
			}
			i += 4

		case "-S":
			if err := setMode(bridge.ModeInheritedSocket); err != nil {
				return opt, err
			}
			if i+3 >= len(argv) {
				return opt, fmt.Errorf("-S requires fd host port")
			}
			fd, err := strconv.Atoi(argv[i+1])
			if err != nil {
				return opt, fmt.Errorf("invalid -S descriptor %q", argv[i+1])
			}
			opt.inheritedFD = fd
			opt.host = argv[i+2]
			if p, err := strconv.Atoi(argv[i+3]); err == nil {
				opt.port = p
			} else {
				return opt, fmt.Errorf("invalid port %q", argv[i+3])
			}
			i += 4

		case "-l":
			if err := setMode(bridge.ModeListen); err != nil {
				return opt, err
			}
			if i+1 >= len(argv) {
				return opt, fmt.Errorf("-l without room for port argument")
			}
			p, err := strconv.Atoi(argv[i+1])
			if err != nil {
				return opt, fmt.Errorf("invalid values in port argument")
			}
			opt.listenPort = p
			i += 2

			if i >= len(argv) {
				break
			}
			if argv[i] != "-exec" {
				opt.listenHost = argv[i]
				i++
			}
			if i >= len(argv) {
				break
			}
			if argv[i] != "-exec" {
				return opt, fmt.Errorf("unexpected trailing argument, expected -exec or end")
			}
			i++
			if i >= len(argv) {
				return opt, fmt.Errorf("-exec without bin arg0 .. argn")
			}
			opt.mode = bridge.ModeExecOnConnect
			opt.execBin = argv[i]
			opt.execArgs = append([]string{}, argv[i+1:]...)
			i = len(argv)

		case "-t":
			opt.single = true
			i++

		case "-X":
			opt.noRedirect = true
			i++

		case "-r", "--retry":
			if i+1 >= len(argv) {
				return opt, fmt.Errorf("missing count argument to -r,--retry")
			}
			n, err := strconv.Atoi(argv[i+1])
			if err != nil {
				return opt, fmt.Errorf("invalid retry count %q", argv[i+1])
			}
			opt.retries = n
			i += 2

		case "-a":
			opt.authSet = true
			opt.authPreauth = 0
			i++
			if i < len(argv) {
				if n, err := strconv.Atoi(argv[i]); err == nil {
					opt.authPreauth = n
					i++
				}
			}

		default:
			return opt, fmt.Errorf("unrecognized argument %q", a)
		}
	}

	if !modeSet {
		if i < len(argv) {
			opt.hasOutbound = true
			opt.outboundSpec = argv[i]
			i++
			if i < len(argv) {
				if p, err := strconv.Atoi(argv[i]); err == nil {
					opt.port = p
					i++
				}
			}
		}
	}

	if i != len(argv) {
		return opt, fmt.Errorf("trailing arguments: %s", strings.Join(argv[i:], " "))
	}

	return opt, nil
}

func parseKeystoreArgs(argv []string) (options, error) {
	opt := defaultOptions()
	opt.keystoreCmd = true

	i := 0
	if i+1 < len(argv) && argv[i] == "-b" {
		opt.keystoreDir = argv[i+1]
		i += 2
	}

	if i+1 >= len(argv) {
		return opt, fmt.Errorf("missing tag / host arguments")
	}
	opt.keystoreTag = argv[i]
	opt.keystoreHost = argv[i+1]
	i += 2

	opt.keystorePort = bridge.DefaultPort
	if i < len(argv) {
		p, err := strconv.Atoi(argv[i])
		if err != nil || p <= 0 || p > 65535 {
			return opt, fmt.Errorf("port argument is invalid or out of range")
		}
		opt.keystorePort = p
		i++
	}

	if i != len(argv) {
		return opt, fmt.Errorf("trailing arguments to keystore command")
	}
	return opt, nil
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func (o options) isolatorPolicy() isolator.Policy {
	if o.single {
		return isolator.Single
	}
	return isolator.Fork
}
