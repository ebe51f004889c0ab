package pipeline

import "time"

// ProcessingStage is the coarse-grained position of a session in the pipeline.
// Stages only move forward under normal progress; a stage may be re-entered
// only through an explicit retry of the section that owns it.
type ProcessingStage string

const (
	StageIdle         ProcessingStage = "idle"
	StageUploading    ProcessingStage = "uploading"
	StageExtracting   ProcessingStage = "extracting"
	StageTranscribing ProcessingStage = "transcribing"
	StageAnalyzing    ProcessingStage = "analyzing"
	StageComplete     ProcessingStage = "complete"
)

// stageRank orders stages for forward-only transition checks.
var stageRank = map[ProcessingStage]int{
	StageIdle:         0,
	StageUploading:    1,
	StageExtracting:   2,
	StageTranscribing: 3,
	StageAnalyzing:    4,
	StageComplete:     5,
}

// Section identifies one of the four independently-failing processing
// concerns. Each section holds its own error state and is retryable without
// perturbing the others.
type Section string

const (
	SectionUpload     Section = "upload"
	SectionFrames     Section = "frames"
	SectionTranscript Section = "transcript"
	SectionAnalysis   Section = "analysis"
)

// ValidSection reports whether s names a known section.
func ValidSection(s Section) bool {
	switch s {
	case SectionUpload, SectionFrames, SectionTranscript, SectionAnalysis:
		return true
	}
	return false
}

// stageFor maps a section to the stage it owns, used when a retry re-enters
// that stage.
var stageFor = map[Section]ProcessingStage{
	SectionUpload:     StageUploading,
	SectionFrames:     StageExtracting,
	SectionTranscript: StageTranscribing,
	SectionAnalysis:   StageAnalyzing,
}

// ErrorRecord is one entry in a session's append-only error log.
type ErrorRecord struct {
	Section    Section   `json:"section"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

// FrameDescriptor addresses a single extracted frame image. Immutable once
// produced; Label is a deterministic function of TimestampSeconds.
type FrameDescriptor struct {
	Address          string `json:"address"`
	TimestampSeconds int    `json:"timestampSeconds"`
	Label            string `json:"label"`
}

// MediaAsset tracks an uploaded video through remote resolution.
// UploadRef is set when the upload starts, ProcessingRef once the provider
// acknowledges, DurableRef once resolution succeeds or the fallback triggers.
// Resolved=true is terminal.
type MediaAsset struct {
	UploadRef     string `json:"uploadRef"`
	ProcessingRef string `json:"processingRef,omitempty"`
	DurableRef    string `json:"durableRef,omitempty"`
	Resolved      bool   `json:"resolved"`
}

// TranscriptSegment is one timed span of recognized speech.
type TranscriptSegment struct {
	Text       string  `json:"text"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Confidence float64 `json:"confidence"`
}

// Transcript is the output of the transcription collaborator. Cost is the
// collaborator's own cumulative spend, reported into the session ledger.
type Transcript struct {
	FullTranscript string              `json:"fullTranscript"`
	Segments       []TranscriptSegment `json:"segments"`
	Cost           float64             `json:"cost,omitempty"`
}

// AnalysisResult is the structured critique returned by the analysis
// collaborator.
type AnalysisResult struct {
	Summary string             `json:"summary"`
	Scores  map[string]float64 `json:"scores,omitempty"`
	Cost    float64            `json:"cost,omitempty"`
}

// SessionState is the top-level state for one processing session. It is only
// ever mutated through SessionRepository.ApplyUpdate and the repository's
// error/cost entry points, which makes concurrent partial updates
// last-write-wins per field rather than per object.
type SessionState struct {
	ID                   string
	Stage                ProcessingStage
	Asset                MediaAsset
	VideoURL             string
	VideoDurationSeconds float64
	Frames               []FrameDescriptor
	Transcript           *Transcript
	Analysis             *AnalysisResult
	Errors               []ErrorRecord
	Costs                *CostLedger
	CreatedAt            time.Time
}

// FramesReady reports whether the frames section has completed.
func (s *SessionState) FramesReady() bool { return len(s.Frames) > 0 }

// TranscriptReady reports whether the transcript section has completed.
func (s *SessionState) TranscriptReady() bool { return s.Transcript != nil }

// LatestErrorFor returns the most recent error recorded against section.
func (s *SessionState) LatestErrorFor(section Section) (ErrorRecord, bool) {
	for i := len(s.Errors) - 1; i >= 0; i-- {
		if s.Errors[i].Section == section {
			return s.Errors[i], true
		}
	}
	return ErrorRecord{}, false
}

// HasErrorFor reports whether any error is recorded against section.
func (s *SessionState) HasErrorFor(section Section) bool {
	_, ok := s.LatestErrorFor(section)
	return ok
}

// SessionUpdate is a partial update merged into SessionState. Nil fields are
// left untouched; set fields are applied last-write-wins. Errors and costs
// have their own entry points because they are logs, not fields.
type SessionUpdate struct {
	Stage                *ProcessingStage
	Asset                *MediaAsset
	VideoURL             *string
	VideoDurationSeconds *float64
	Frames               []FrameDescriptor
	Transcript           *Transcript
	Analysis             *AnalysisResult
}
