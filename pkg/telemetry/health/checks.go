package health

import (
	"context"
	"errors"

	"mercator-hq/procmetrics/pkg/multiproc"
)

// DirectoryCheck fails while the multiprocess directory is missing or does
// not accept new files. Workers that start in that state cannot record
// metrics.
func DirectoryCheck(dir string) CheckFunc {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return multiproc.CheckDirectory(dir)
	}
}

// CollectorCheck fails when a collection pass cannot list the directory.
// Unreadable process files do not fail the check; scrapes skip them.
func CollectorCheck(c *multiproc.Collector) CheckFunc {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, errs := c.Collect()
		for _, err := range errs {
			var perr *multiproc.PartialCollectionError
			if errors.As(err, &perr) && perr.Path == c.Dir() {
				return err
			}
		}
		return nil
	}
}

// ReaperCheck fails when the sweep scheduler of a grace-policy reaper is
// expected to run but has stopped.
func ReaperCheck(r *multiproc.Reaper, scheduled bool) CheckFunc {
	return func(ctx context.Context) error {
		if r.Policy() != multiproc.ReapGrace || !scheduled {
			return nil
		}
		if !r.IsRunning() {
			return errors.New("reaper sweep scheduler is not running")
		}
		return nil
	}
}
