package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"

	"pitch-pipeline/internal/platform/metrics"
)

// ExtractionMethod distinguishes a real provider resolution from the
// synthetic fallback path.
type ExtractionMethod string

const (
	MethodPrimary  ExtractionMethod = "primary"
	MethodFallback ExtractionMethod = "fallback"
)

// Resolution is the outcome of remote asset resolution. From the caller's
// point of view it always succeeds: DurableRef is set on both the primary
// and the fallback path.
type Resolution struct {
	ProcessingRef string
	DurableRef    string
	Method        ExtractionMethod
	WorkflowSteps []string
}

// AssetResolver turns an uploaded video into a durable playback identifier.
type AssetResolver interface {
	Resolve(ctx context.Context, videoURL string, durationSeconds float64) (*Resolution, error)
}

// Transcriber produces a transcript for an uploaded video. External
// collaborator; only its interface is owned here.
type Transcriber interface {
	Transcribe(ctx context.Context, videoURL string) (*Transcript, error)
}

// Analyzer consumes aligned frame/segment pairs and returns a structured
// critique. External collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, pairs []AlignedPair) (*AnalysisResult, error)
}

// ExtractionResult is the combined output of resolution, frame generation
// and cost calculation for one video.
type ExtractionResult struct {
	Frames        []FrameDescriptor
	FrameCount    int
	Cost          float64
	Method        ExtractionMethod
	ProcessingRef string
	DurableRef    string
	WorkflowSteps []string
}

// Ledger contributor names.
const (
	costFrameExtraction = "frame_extraction"
	costTranscription   = "transcription"
	costAnalysis        = "analysis"
)

// sessionRuntime holds the non-persistent coordination state for one live
// session: its cancellation context, the inputs recorded at upload
// completion, and the in-flight guards that make dispatch idempotent.
type sessionRuntime struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu                  sync.Mutex
	videoURL            string
	duration            float64
	hasInputs           bool
	framesInFlight      bool
	transcriptInFlight  bool
	analysisStarted     bool
	analysisAutoRetried bool
}

// MachineConfig wires a Machine's collaborators. Sessions may be nil to use
// a fresh in-memory repository; Metrics may be nil to disable recording.
type MachineConfig struct {
	Sessions    *SessionRepository
	Resolver    AssetResolver
	Transcriber Transcriber
	Analyzer    Analyzer
	Frames      FrameGenerator
	Pricing     Pricing
	Log         *slog.Logger
	Metrics     *metrics.Metrics
}

// Machine is the processing state machine. It owns session state through the
// repository, launches the resolver and the transcription collaborator
// concurrently once an upload completes, and triggers analysis exactly once
// when both frames and transcript are ready.
type Machine struct {
	sessions    *SessionRepository
	resolver    AssetResolver
	transcriber Transcriber
	analyzer    Analyzer
	frames      FrameGenerator
	pricing     Pricing
	log         *slog.Logger
	metrics     *metrics.Metrics

	mu       sync.Mutex
	runtimes map[string]*sessionRuntime
}

// NewMachine returns a Machine built from cfg.
func NewMachine(cfg MachineConfig) *Machine {
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = NewSessionRepository()
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	frames := cfg.Frames
	if frames.ImageBase == "" || frames.IntervalSeconds <= 0 {
		frames = NewFrameGenerator(frames.ImageBase, frames.IntervalSeconds)
	}
	pricing := cfg.Pricing
	if pricing.UploadFlatFee == 0 && pricing.PerFrameFee == 0 {
		pricing = DefaultPricing()
	}

	m := &Machine{
		sessions:    sessions,
		resolver:    cfg.Resolver,
		transcriber: cfg.Transcriber,
		analyzer:    cfg.Analyzer,
		frames:      frames,
		pricing:     pricing,
		log:         log,
		metrics:     cfg.Metrics,
		runtimes:    make(map[string]*sessionRuntime),
	}
	// Every state change re-checks the "both ready" condition; the runtime
	// guard makes repeated notifications harmless.
	sessions.Subscribe(func(snap SessionState) { m.maybeStartAnalysis(snap.ID) })
	return m
}

// Sessions exposes the underlying repository, e.g. for the metrics gauge.
func (m *Machine) Sessions() *SessionRepository { return m.sessions }

// CreateSession starts a new idle session with a live cancellation context.
func (m *Machine) CreateSession() SessionState {
	snap := m.sessions.Create()
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.runtimes[snap.ID] = &sessionRuntime{ctx: ctx, cancel: cancel}
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.IncSessionsCreated()
	}
	return snap
}

// Snapshot returns the session's current state.
func (m *Machine) Snapshot(id string) (SessionState, bool) {
	return m.sessions.Snapshot(id)
}

// CompleteUpload records the uploaded video's URL and duration, moves the
// session from uploading to extracting, and launches the frames and
// transcript sections concurrently. The two sections are
// correctness-independent: either may fail or retry without affecting the
// other.
func (m *Machine) CompleteUpload(id, videoURL string, durationSeconds float64) error {
	if err := validateExtractionInput(videoURL, durationSeconds); err != nil {
		return err
	}
	rt, ok := m.runtime(id)
	if !ok {
		return ErrSessionNotFound
	}

	rt.mu.Lock()
	rt.videoURL = videoURL
	rt.duration = durationSeconds
	rt.hasInputs = true
	rt.mu.Unlock()

	_, err := m.sessions.ApplyUpdate(id, SessionUpdate{
		VideoURL:             &videoURL,
		VideoDurationSeconds: &durationSeconds,
		Asset:                &MediaAsset{UploadRef: videoURL},
	})
	if err != nil {
		return err
	}
	// Upload completion is the uploading -> extracting transition; a repeated
	// call cannot move the stage backwards.
	m.advanceStage(id, StageExtracting)

	m.startFrames(id)
	m.startTranscript(id)
	return nil
}

// Retry clears one section's errors and re-dispatches that section's owning
// operation with the same inputs it had before failure. Other sections are
// untouched; concurrent retries of different sections may overlap.
func (m *Machine) Retry(id string, section Section) error {
	if !ValidSection(section) {
		return &ValidationError{Field: "section", Reason: "must be one of upload, frames, transcript, analysis"}
	}
	rt, ok := m.runtime(id)
	if !ok {
		return ErrSessionNotFound
	}
	rt.mu.Lock()
	hasInputs := rt.hasInputs
	rt.mu.Unlock()
	if !hasInputs {
		return ErrNoRetryInputs
	}

	if err := m.sessions.ClearSectionErrors(id, section); err != nil {
		return err
	}
	// Explicit retry is the only path allowed to re-enter a stage.
	if owned, ok := stageFor[section]; ok {
		_, _ = m.sessions.ApplyUpdate(id, SessionUpdate{Stage: &owned})
	}

	switch section {
	case SectionUpload:
		// Idempotent re-attempt of the whole post-upload pipeline.
		m.startFrames(id)
		m.startTranscript(id)
	case SectionFrames:
		m.startFrames(id)
	case SectionTranscript:
		m.startTranscript(id)
	case SectionAnalysis:
		rt.mu.Lock()
		rt.analysisStarted = false
		rt.analysisAutoRetried = false
		rt.mu.Unlock()
		m.maybeStartAnalysis(id)
	}
	return nil
}

// Reset abandons a session: the context is cancelled so in-flight resolution
// timers stop, and the state is discarded. Late task completions observe the
// cancelled context and never mutate a discarded session.
func (m *Machine) Reset(id string) error {
	m.mu.Lock()
	rt, ok := m.runtimes[id]
	delete(m.runtimes, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	rt.cancel()
	m.sessions.Delete(id)
	return nil
}

// ExtractFrames resolves the video to a durable identifier, generates the
// frame descriptor list, and prices it. Used both by the stateless extraction
// endpoint and by the frames section of a session.
func (m *Machine) ExtractFrames(ctx context.Context, videoURL string, durationSeconds float64) (*ExtractionResult, error) {
	if err := validateExtractionInput(videoURL, durationSeconds); err != nil {
		return nil, err
	}

	res, err := m.resolver.Resolve(ctx, videoURL, durationSeconds)
	if err != nil {
		return nil, err
	}

	frames := m.frames.Generate(res.DurableRef, durationSeconds)
	cost := ExtractionCost(len(frames), m.pricing)

	if m.metrics != nil {
		m.metrics.IncExtractions()
		m.metrics.AddFramesGenerated(len(frames))
		if res.Method == MethodFallback {
			m.metrics.IncFallbacks()
		}
	}

	return &ExtractionResult{
		Frames:        frames,
		FrameCount:    len(frames),
		Cost:          cost,
		Method:        res.Method,
		ProcessingRef: res.ProcessingRef,
		DurableRef:    res.DurableRef,
		WorkflowSteps: res.WorkflowSteps,
	}, nil
}

func (m *Machine) runtime(id string) (*sessionRuntime, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.runtimes[id]
	return rt, ok
}

// startFrames dispatches the frames section unless it is already in flight.
func (m *Machine) startFrames(id string) {
	rt, ok := m.runtime(id)
	if !ok {
		return
	}
	rt.mu.Lock()
	if rt.framesInFlight || !rt.hasInputs {
		rt.mu.Unlock()
		return
	}
	rt.framesInFlight = true
	videoURL, duration := rt.videoURL, rt.duration
	rt.mu.Unlock()

	go func() {
		defer func() {
			rt.mu.Lock()
			rt.framesInFlight = false
			rt.mu.Unlock()
		}()

		res, err := m.ExtractFrames(rt.ctx, videoURL, duration)
		if rt.ctx.Err() != nil {
			return
		}
		if err != nil {
			m.log.Error("frame extraction failed",
				slog.String("session_id", id),
				slog.String("error", err.Error()))
			if m.metrics != nil {
				m.metrics.IncErrors()
			}
			_, _ = m.sessions.AppendError(id, SectionFrames)
			return
		}

		m.advanceStage(id, StageTranscribing)
		_, _ = m.sessions.ApplyUpdate(id, SessionUpdate{
			Frames: res.Frames,
			Asset: &MediaAsset{
				UploadRef:     videoURL,
				ProcessingRef: res.ProcessingRef,
				DurableRef:    res.DurableRef,
				Resolved:      true,
			},
		})
		_ = m.sessions.RecordCost(id, costFrameExtraction, res.Cost)

		m.log.Info("frames ready",
			slog.String("session_id", id),
			slog.Int("frame_count", res.FrameCount),
			slog.String("method", string(res.Method)))
	}()
}

// startTranscript dispatches the transcript section unless it is already in
// flight.
func (m *Machine) startTranscript(id string) {
	rt, ok := m.runtime(id)
	if !ok {
		return
	}
	rt.mu.Lock()
	if rt.transcriptInFlight || !rt.hasInputs {
		rt.mu.Unlock()
		return
	}
	rt.transcriptInFlight = true
	videoURL := rt.videoURL
	rt.mu.Unlock()

	go func() {
		defer func() {
			rt.mu.Lock()
			rt.transcriptInFlight = false
			rt.mu.Unlock()
		}()

		var (
			transcript *Transcript
			err        error
		)
		if m.transcriber == nil {
			err = errors.New("no transcriber installed")
		} else {
			transcript, err = m.transcriber.Transcribe(rt.ctx, videoURL)
		}
		if rt.ctx.Err() != nil {
			return
		}
		if err != nil {
			m.log.Error("transcription failed",
				slog.String("session_id", id),
				slog.String("error", err.Error()))
			if m.metrics != nil {
				m.metrics.IncErrors()
			}
			_, _ = m.sessions.AppendError(id, SectionTranscript)
			return
		}

		_, _ = m.sessions.ApplyUpdate(id, SessionUpdate{Transcript: transcript})
		if transcript.Cost > 0 {
			_ = m.sessions.RecordCost(id, costTranscription, transcript.Cost)
		}

		m.log.Info("transcript ready",
			slog.String("session_id", id),
			slog.Int("segments", len(transcript.Segments)))
	}()
}

// maybeStartAnalysis triggers the analysis collaborator when both frames and
// transcript are ready. The runtime guard makes it fire exactly once per
// session no matter how many update notifications arrive.
func (m *Machine) maybeStartAnalysis(id string) {
	rt, ok := m.runtime(id)
	if !ok {
		return
	}

	rt.mu.Lock()
	if rt.analysisStarted {
		rt.mu.Unlock()
		return
	}
	snap, ok := m.sessions.Snapshot(id)
	if !ok || !snap.FramesReady() || !snap.TranscriptReady() {
		rt.mu.Unlock()
		return
	}
	rt.analysisStarted = true
	rt.mu.Unlock()

	m.advanceStage(id, StageAnalyzing)
	go m.runAnalysis(rt, id, snap)
}

func (m *Machine) runAnalysis(rt *sessionRuntime, id string, snap SessionState) {
	pairs := AlignFrames(snap.Frames, snap.Transcript.Segments)

	var (
		result *AnalysisResult
		err    error
	)
	if m.analyzer == nil {
		err = errors.New("no analyzer installed")
	} else {
		result, err = m.analyzer.Analyze(rt.ctx, pairs)
	}
	if rt.ctx.Err() != nil {
		return
	}

	// One automatic retry before the error is surfaced for manual retry.
	if err != nil && m.analyzer != nil {
		rt.mu.Lock()
		retried := rt.analysisAutoRetried
		rt.analysisAutoRetried = true
		rt.mu.Unlock()
		if !retried {
			m.log.Warn("analysis failed, retrying automatically",
				slog.String("session_id", id),
				slog.String("error", err.Error()))
			result, err = m.analyzer.Analyze(rt.ctx, pairs)
			if rt.ctx.Err() != nil {
				return
			}
		}
	}

	if err != nil {
		m.log.Error("analysis failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		if m.metrics != nil {
			m.metrics.IncErrors()
		}
		_, _ = m.sessions.AppendError(id, SectionAnalysis)
		return
	}

	stage := StageComplete
	_, _ = m.sessions.ApplyUpdate(id, SessionUpdate{Analysis: result, Stage: &stage})
	if result.Cost > 0 {
		_ = m.sessions.RecordCost(id, costAnalysis, result.Cost)
	}
	if m.metrics != nil {
		m.metrics.IncAnalysesCompleted()
	}

	m.log.Info("analysis complete", slog.String("session_id", id))
}

// advanceStage moves the session forward to stage; it never regresses.
// Regression is only possible through Retry, which sets the stage directly.
func (m *Machine) advanceStage(id string, stage ProcessingStage) {
	snap, ok := m.sessions.Snapshot(id)
	if !ok || stageRank[snap.Stage] >= stageRank[stage] {
		return
	}
	_, _ = m.sessions.ApplyUpdate(id, SessionUpdate{Stage: &stage})
}

func validateExtractionInput(videoURL string, durationSeconds float64) error {
	if videoURL == "" {
		return &ValidationError{Field: "videoUrl", Reason: "must be a non-empty string"}
	}
	if durationSeconds <= 0 || math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) {
		return &ValidationError{Field: "videoDurationSeconds", Reason: "must be a finite number greater than zero"}
	}
	return nil
}
