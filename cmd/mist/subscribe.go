package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nasa/GMSEC-API-sub012/connmgr"
	"github.com/nasa/GMSEC-API-sub012/message"
	"github.com/nasa/GMSEC-API-sub012/mist"
)

type subscribeOptions struct {
	count    int
	duration time.Duration
	xml      bool
	validate bool
	workers  int
}

func newSubscribeCmd(root *rootFlags) *cobra.Command {
	opts := &subscribeOptions{}

	cmd := &cobra.Command{
		Use:   "subscribe PATTERN",
		Short: "Print messages received on subjects matching PATTERN",
		Long: "Connect with the configured middleware and print every message whose\n" +
			"subject matches PATTERN (* matches one element, > the rest) until\n" +
			"interrupted, --count messages arrive, or --duration elapses.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubscribe(cmd, root, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.count, "count", 0, "Exit after this many messages, 0 is unlimited")
	f.DurationVar(&opts.duration, "duration", 0, "Stop after this long, 0 runs until interrupted")
	f.BoolVar(&opts.xml, "xml", false, "Print messages as XML instead of JSON")
	f.BoolVar(&opts.validate, "validate", false, "Report whether each message conforms to the specification")
	f.IntVar(&opts.workers, "workers", 1, "Callback workers; more than one may reorder output")
	return cmd
}

// printer serialises output from dispatch workers and counts messages
type printer struct {
	mu    sync.Mutex
	out   io.Writer
	spec  *mist.Specification
	opts  *subscribeOptions
	seen  int
	done  chan struct{}
	close sync.Once
}

func (p *printer) receive(_ context.Context, msg *message.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opts.count > 0 && p.seen >= p.opts.count {
		return
	}
	p.seen++

	if p.opts.xml {
		fmt.Fprintln(p.out, msg.ToXML())
	} else if data, err := msg.ToJSON(); err == nil {
		fmt.Fprintln(p.out, string(data))
	}
	if p.opts.validate {
		if err := p.spec.ValidateMessage(msg); err != nil {
			fmt.Fprintf(p.out, "# invalid: %v\n", err)
		} else {
			fmt.Fprintln(p.out, "# valid")
		}
	}

	if p.opts.count > 0 && p.seen == p.opts.count {
		p.close.Do(func() { close(p.done) })
	}
}

func runSubscribe(cmd *cobra.Command, root *rootFlags, pattern string, opts *subscribeOptions) error {
	logger := slog.Default()

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	cm, err := connmgr.New(cfg,
		connmgr.WithLogger(logger),
		connmgr.WithAutoDispatch(max(opts.workers, 1), 256))
	if err != nil {
		return err
	}
	if err := cm.Initialize(ctx); err != nil {
		return err
	}
	defer func() { _ = cm.Cleanup(context.Background()) }()

	p := &printer{out: cmd.OutOrStdout(), spec: cm.Specification(), opts: opts, done: make(chan struct{})}
	if _, err := cm.Subscribe(ctx, pattern, p.receive); err != nil {
		return err
	}
	cmd.PrintErrf("Subscribed to %s over %s\n", pattern, cm.Library())

	select {
	case <-ctx.Done():
	case <-p.done:
	}
	p.mu.Lock()
	received := p.seen
	p.mu.Unlock()
	logger.Info("Subscription finished", "pattern", pattern, "received", received)
	return nil
}
