package processor

import (
	"context"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// WorkerPool runs frame processing jobs on a bounded set of goroutines. The
// slow step per frame is the recognizer round-trip, so overlapping frames
// keeps the capture pipeline from stalling on the network.
type WorkerPool struct {
	processor       *FrameProcessor
	jobs            chan *frameJob
	workerCount     int
	activeJobs      int
	activeJobsMutex sync.Mutex
	shutdown        chan struct{}
}

type frameJob struct {
	ctx       context.Context
	run       *CaptureRun
	imageData []byte
	filename  string
	resultCh  chan *frameResult // Individual result channel per job
}

type frameResult struct {
	Outcomes []FaceOutcome
	Err      error
}

// NewWorkerPool creates a pool sized to the container: 75% of available
// CPUs, at least 2 workers.
func NewWorkerPool(processor *FrameProcessor) *WorkerPool {
	availableCPUs := runtime.NumCPU()
	workerCount := max(2, (availableCPUs*3)/4)

	log.Infof("Initializing frame processing worker pool with %d workers", workerCount)

	pool := &WorkerPool{
		processor:   processor,
		jobs:        make(chan *frameJob, workerCount*2),
		workerCount: workerCount,
		shutdown:    make(chan struct{}),
	}

	pool.startWorkers()

	return pool
}

func (p *WorkerPool) startWorkers() {
	for i := 0; i < p.workerCount; i++ {
		go func(workerID int) {
			log.Debugf("Worker %d started", workerID)

			for {
				select {
				case job, ok := <-p.jobs:
					if !ok {
						log.Debugf("Worker %d shutting down (job channel closed)", workerID)
						return
					}

					p.activeJobsMutex.Lock()
					p.activeJobs++
					jobCount := p.activeJobs
					p.activeJobsMutex.Unlock()

					log.Debugf("Worker %d processing frame for run %s (active jobs: %d)",
						workerID, job.run.ID, jobCount)

					startTime := time.Now()

					outcomes, err := p.processor.processFrameInternal(
						job.ctx, job.run, job.imageData, job.filename)

					p.activeJobsMutex.Lock()
					p.activeJobs--
					p.activeJobsMutex.Unlock()

					result := &frameResult{
						Outcomes: outcomes,
						Err:      err,
					}

					select {
					case job.resultCh <- result:
					default:
						log.Warnf("Worker %d: Could not send result, channel might be closed", workerID)
					}

					log.Debugf("Worker %d completed frame in %v", workerID, time.Since(startTime))

				case <-p.shutdown:
					log.Debugf("Worker %d received shutdown signal", workerID)
					return
				}
			}
		}(i)
	}
}

// ProcessFrame processes a frame through the pool and blocks until its
// outcomes are available or ctx is done.
func (p *WorkerPool) ProcessFrame(ctx context.Context, run *CaptureRun, imageData []byte, filename string) ([]FaceOutcome, error) {
	resultCh := make(chan *frameResult, 1)

	job := &frameJob{
		ctx:       ctx,
		run:       run,
		imageData: imageData,
		filename:  filename,
		resultCh:  resultCh,
	}

	select {
	case p.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case result := <-resultCh:
		return result.Outcomes, result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ActiveJobCount returns the number of jobs currently being processed.
func (p *WorkerPool) ActiveJobCount() int {
	p.activeJobsMutex.Lock()
	defer p.activeJobsMutex.Unlock()
	return p.activeJobs
}

// GetWorkerCount returns the number of workers in the pool.
func (p *WorkerPool) GetWorkerCount() int {
	return p.workerCount
}

// GetQueueCapacity returns the capacity of the job queue.
func (p *WorkerPool) GetQueueCapacity() int {
	return cap(p.jobs)
}

// Shutdown stops the worker pool.
func (p *WorkerPool) Shutdown() {
	close(p.shutdown)
	close(p.jobs)
}
