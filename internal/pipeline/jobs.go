package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/bookchunk/internal/book"
)

// JobStatus represents the state of an ingestion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusResolving  JobStatus = "resolving_toc"
	StatusChunking   JobStatus = "chunking"
	StatusStoring    JobStatus = "storing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Input is everything a client hands over with one book.
type Input struct {
	Filename string
	Title    string
	Data     []byte

	// TOC is an uploaded table of contents in TOCFormat (json, yaml or
	// markdown). When empty, TOCPages are sent to the LLM extractor.
	TOC       []byte
	TOCFormat string
	TOCPages  []int

	// FirstPage is the physical page carrying book page 1. Zero defers
	// to Info, then to 1.
	FirstPage int
	Info      *book.Info

	// Force re-chunks a book whose content hash is already stored.
	Force bool
}

// Job tracks the state of a single book ingestion.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	BookID string `json:"book_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	input  Input
	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	Pages           int      `json:"pages"`
	Chapters        int      `json:"chapters"`
	TotalChunks     int      `json:"total_chunks"`
	EstimatedTokens int      `json:"estimated_tokens"`
	Errors          []string `json:"errors"`
}

// NewJob returns a queued job for in with a fresh time-ordered id.
func NewJob(in Input) (*Job, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate job id: %w", err)
	}
	now := time.Now()
	return &Job{
		ID:        id.String(),
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  in.Filename,
		Title:     in.Title,
		CreatedAt: now,
		UpdatedAt: now,
		input:     in,
	}, nil
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetPages records how many non-blank pages were extracted.
func (j *Job) SetPages(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Pages = n
	j.UpdatedAt = time.Now()
}

// SetChapters records the size of the resolved table of contents.
func (j *Job) SetChapters(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Chapters = n
	j.UpdatedAt = time.Now()
}

// SetChunks records the chunk count and their estimated token total.
func (j *Job) SetChunks(n, tokens int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = n
	j.Progress.EstimatedTokens = tokens
	j.UpdatedAt = time.Now()
}

// SetBookID records the stored (or already existing) book id.
func (j *Job) SetBookID(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.BookID = id
	j.UpdatedAt = time.Now()
}

// SetContentHash records the hash used for dedup.
func (j *Job) SetContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

// Input returns what the job was submitted with.
func (j *Job) Input() Input {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.input
}

// release drops the uploaded bytes once the job no longer needs them.
func (j *Job) release() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.input.Data = nil
	j.input.TOC = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	BookID      string    `json:"book_id"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	ContentHash string    `json:"content_hash,omitempty"`
	Progress    Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:          j.ID,
		BookID:      j.BookID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		Title:       j.Title,
		ContentHash: j.ContentHash,
		Progress:    p,
	}
}

// Done reports whether the job reached a final status.
func (s JobSnapshot) Done() bool {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusPartial, StatusDupSkipped:
		return true
	}
	return false
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
