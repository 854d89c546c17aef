package entity

import (
	"fmt"
	"path/filepath"
	"strings"
)

// TranslationTask is the inbound queue message describing one audio
// file to translate. The field names are the wire contract shared with
// the upload intake service.
type TranslationTask struct {
	ContainerName string `json:"containerName"`
	FileName      string `json:"fileName"`
	LangIn        string `json:"langIn"`
	LangOut       string `json:"langOut"`
	UserID        string `json:"userId"`
}

// Validate checks that every field carries a value. A task failing
// validation can never become processable and is dead-lettered.
func (t TranslationTask) Validate() error {
	for name, v := range map[string]string{
		"containerName": t.ContainerName,
		"fileName":      t.FileName,
		"langIn":        t.LangIn,
		"langOut":       t.LangOut,
		"userId":        t.UserID,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("field %s is empty", name)
		}
	}
	return nil
}

// UploadID is the task's file name without its extension. All artifact
// blob names are derived from it.
func (t TranslationTask) UploadID() string {
	return strings.TrimSuffix(t.FileName, filepath.Ext(t.FileName))
}

// Artifact blob names produced by the pipeline for this task.
func (t TranslationTask) TranscriptionBlob() string { return t.UploadID() + "-transcription.txt" }
func (t TranslationTask) TranslationBlob() string   { return t.UploadID() + "-translation.txt" }
func (t TranslationTask) SynthesizedBlob() string   { return t.UploadID() + "-synthesized.wav" }
func (t TranslationTask) ZipBlob() string           { return t.UploadID() + "-artifacts.zip" }

// TranslationResult is what the speech provider returns for one audio
// file.
type TranslationResult struct {
	Transcription string `json:"transcription"`
	Translation   string `json:"translation"`
}

// Payment is the optional payment record stored as payment.json inside
// the task's container by the payment step. The worker only reads it.
type Payment struct {
	UserEmail        string  `json:"userEmail"`
	UserID           string  `json:"userId"`
	Amount           float64 `json:"amount"`
	Service          string  `json:"service"`
	SynthesizedAudio bool    `json:"synthesizedAudio"`
}
