package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreeningStatus_Transitions(t *testing.T) {
	tests := []struct {
		status   ScreeningStatus
		terminal bool
		cancel   bool
		retry    bool
	}{
		{ScreeningPending, false, true, false},
		{ScreeningProcessing, false, true, false},
		{ScreeningCompleted, true, false, false},
		{ScreeningFailed, true, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.cancel, tt.status.CanCancel())
			assert.Equal(t, tt.retry, tt.status.CanRetry())
		})
	}
}

func TestJobPosting_AcceptsApplications(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&JobPosting{Status: JobPostingOpen}).AcceptsApplications(now))
	assert.True(t, (&JobPosting{Status: JobPostingOpen, Deadline: &future}).AcceptsApplications(now))
	assert.True(t, (&JobPosting{Status: JobPostingOpen, Deadline: &now}).AcceptsApplications(now))
	assert.False(t, (&JobPosting{Status: JobPostingOpen, Deadline: &past}).AcceptsApplications(now))
	assert.False(t, (&JobPosting{Status: JobPostingClosed}).AcceptsApplications(now))
	assert.False(t, (&JobPosting{Status: JobPostingDraft}).AcceptsApplications(now))

	var nilPosting *JobPosting
	assert.False(t, nilPosting.AcceptsApplications(now))
}

func TestJobPosting_FullText(t *testing.T) {
	j := &JobPosting{Title: "Go Engineer", Description: "Build services"}
	assert.Equal(t, "Go Engineer\n\nBuild services", j.FullText())

	j.Requirements = "5 years Go"
	assert.Equal(t, "Go Engineer\n\nBuild services\n\n5 years Go", j.FullText())
}

func TestProcessedCvData_AllSkills(t *testing.T) {
	p := &ProcessedCvData{ExtractedCvData: ExtractedCvData{
		TechnicalSkills:      []string{"Docker", "Kubernetes", "Go"},
		ProgrammingLanguages: []string{"Go", "Python", ""},
	}}
	assert.Equal(t, []string{"Docker", "Kubernetes", "Go", "Python"}, p.AllSkills())

	var nilData *ProcessedCvData
	assert.Nil(t, nilData.AllSkills())
}

func TestFileKind_Directory(t *testing.T) {
	assert.Equal(t, "resume", KindResume.Directory())
	assert.Equal(t, "certificates", KindCertificate.Directory())
	assert.Equal(t, "documents", KindGeneral.Directory())
	assert.True(t, KindGeneral.Valid())
	assert.False(t, KindUnknown.Valid())
}

func TestAnalysisMetadata_Validate(t *testing.T) {
	cls := Classification{Kind: KindCertificate, Confidence: 0.9, Decisive: true}

	md := NewImageCertificateMetadata(cls, ImageCertificateResult{Certificate: CertificateAnalysis{CertificateType: CertTOEIC}})
	require.NoError(t, md.Validate())
	require.NotNil(t, md.Certificate())
	assert.Equal(t, CertTOEIC, md.Certificate().CertificateType)

	resume := NewResumeMetadata(Classification{Kind: KindResume}, ResumeResult{ExtractedChars: 1200})
	require.NoError(t, resume.Validate())
	assert.Nil(t, resume.Certificate())

	mismatched := &AnalysisMetadata{Type: AnalysisPDFCertificate, Resume: &ResumeResult{}}
	assert.Error(t, mismatched.Validate())

	two := NewPDFCertificateMetadata(cls, PDFCertificateResult{})
	two.Resume = &ResumeResult{}
	assert.Error(t, two.Validate())

	empty := &AnalysisMetadata{Type: AnalysisResume}
	assert.Error(t, empty.Validate())

	var nilMD *AnalysisMetadata
	assert.NoError(t, nilMD.Validate())
	assert.Nil(t, nilMD.Certificate())
}

func TestAnalysisMetadata_Pending(t *testing.T) {
	cls := Classification{Kind: KindResume, Confidence: 0.8, Reason: "résumé keywords"}
	md := NewPendingMetadata(cls)
	require.NoError(t, md.Validate())
	assert.True(t, md.Pending())
	assert.Equal(t, cls, md.Classification)
	assert.Nil(t, md.Certificate())

	md.Resume = &ResumeResult{}
	assert.Error(t, md.Validate(), "pending metadata has no payload")

	assert.False(t, NewResumeMetadata(cls, ResumeResult{}).Pending())
	var nilMD *AnalysisMetadata
	assert.False(t, nilMD.Pending())
}

func TestAnalysisMetadata_JSONKeepsVariant(t *testing.T) {
	md := NewDocumentCertificateMetadata(Classification{Kind: KindCertificate}, DocumentCertificateResult{
		Certificate: CertificateAnalysis{CertificateType: CertMOOC, Confidence: ConfidenceMedium},
		Format:      "docx",
	})
	raw, err := json.Marshal(md)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"document_certificate"`)
	assert.NotContains(t, string(raw), "image_certificate")

	var back AnalysisMetadata
	require.NoError(t, json.Unmarshal(raw, &back))
	require.NoError(t, back.Validate())
	assert.Equal(t, CertMOOC, back.Certificate().CertificateType)
}

func TestSkillTargets_TotalWeight(t *testing.T) {
	st := &SkillTargets{Skills: []Skill{{Name: "Go", Weight: 0.6}, {Name: "SQL", Weight: 0.4}}}
	assert.InDelta(t, 1.0, st.TotalWeight(), 1e-9)

	var nilTargets *SkillTargets
	assert.Zero(t, nilTargets.TotalWeight())
}
