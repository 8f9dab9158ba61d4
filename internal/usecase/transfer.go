package usecase

import (
	"context"
	"sync"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/entity"
	"github.com/fiapx/fiapx-album-harvester/internal/domain/port"
)

type transferJob struct {
	ctx      context.Context
	task     entity.DownloadTask
	progress port.ItemProgress
	retries  int
	reply    chan *entity.FailureRecord
}

// transferPool runs blocking downloads on its own goroutines. Item tasks
// submit work and wait for the reply, so the blocking call never runs on
// the scheduling path.
type transferPool struct {
	jobs chan transferJob
	wg   sync.WaitGroup
	once sync.Once
}

func newTransferPool(d port.MediaDownloader, size int) *transferPool {
	p := &transferPool{jobs: make(chan transferJob)}
	p.wg.Add(size)
	for range size {
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job.reply <- d.Download(job.ctx, job.task, job.progress, job.retries)
			}
		}()
	}
	return p
}

// submit blocks until the download finished or ctx is done.
func (p *transferPool) submit(ctx context.Context, task entity.DownloadTask, progress port.ItemProgress, retries int) (*entity.FailureRecord, error) {
	reply := make(chan *entity.FailureRecord, 1)
	select {
	case p.jobs <- transferJob{ctx: ctx, task: task, progress: progress, retries: retries, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case f := <-reply:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *transferPool) close() {
	p.once.Do(func() {
		close(p.jobs)
		p.wg.Wait()
	})
}
