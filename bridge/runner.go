package bridge

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/viant/mcpb/internal/config"
)

// Run runs the bridge on stdin and stdout
func Run(args []string) error {
	options, err := ParseOptions(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	service, err := New(ctx, options, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	return service.Run(ctx)
}

// ParseOptions parses command line arguments; values from a config file are overridden by flags.
func ParseOptions(args []string) (*Options, error) {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return nil, err
	}
	if options.ConfigURL == "" {
		return options, nil
	}
	loaded := &Options{}
	if err := config.Load(context.Background(), options.ConfigURL, loaded); err != nil {
		return nil, err
	}
	if _, err := flags.ParseArgs(loaded, args); err != nil {
		return nil, err
	}
	return loaded, nil
}
