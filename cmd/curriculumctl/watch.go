package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/curriculum-backend/internal/app"
	"github.com/yungbote/curriculum-backend/internal/clients/redis"
	types "github.com/yungbote/curriculum-backend/internal/domain"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var (
		jobID   string
		program string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream generation job events from redis",
		Long:  "Subscribes to REDIS_JOB_CHANNEL and prints one line per job event until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := root.logger()
			if err != nil {
				return err
			}
			defer log.Sync()

			filter, err := newEventFilter(jobID, program)
			if err != nil {
				return err
			}
			cfg := app.LoadConfig(log)
			rdb, err := redis.NewClient(cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer rdb.Close()
			bus, err := redis.NewJobBus(log, rdb, cfg.RedisJobChannel)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ctx := cmd.Context()
			if err := bus.StartForwarder(ctx, func(ev *types.GenerationJobEvent) {
				if filter.match(ev) {
					fmt.Fprintln(out, formatEvent(ev))
				}
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watching %s on %s\n", cfg.RedisJobChannel, cfg.RedisAddr)
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "Only show events for this job id")
	cmd.Flags().StringVar(&program, "program", "", "Only show events for this program id")
	return cmd
}

type eventFilter struct {
	job     uuid.UUID
	program uuid.UUID
}

func newEventFilter(job, program string) (eventFilter, error) {
	var f eventFilter
	var err error
	if job != "" {
		if f.job, err = uuid.Parse(job); err != nil {
			return f, fmt.Errorf("--job: %w", err)
		}
	}
	if program != "" {
		if f.program, err = uuid.Parse(program); err != nil {
			return f, fmt.Errorf("--program: %w", err)
		}
	}
	return f, nil
}

func (f eventFilter) match(ev *types.GenerationJobEvent) bool {
	if ev == nil {
		return false
	}
	if f.job != uuid.Nil && ev.JobID != f.job {
		return false
	}
	if f.program != uuid.Nil && ev.ProgramID != f.program {
		return false
	}
	return true
}

func formatEvent(ev *types.GenerationJobEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %-10s %-11s %3d%%", ev.CreatedAt.Format("15:04:05"), ev.JobID, ev.Kind, ev.Stage, ev.Progress)
	if ev.Message != "" {
		b.WriteString("  ")
		b.WriteString(ev.Message)
	}
	return b.String()
}
