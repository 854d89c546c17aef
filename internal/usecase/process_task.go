package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mario-guerra/translation-service/internal/domain/entity"
	"github.com/mario-guerra/translation-service/internal/domain/port"
	"github.com/mario-guerra/translation-service/internal/infra/metrics"
)

const (
	paymentBlobName = "payment.json"

	subjectSuccess = "Your Audio Translation is Ready"
	subjectFailure = "Audio Translation Failed"
)

// ProcessTaskUseCase runs the artifact pipeline for one queued
// translation task: download audio, translate with retry, optionally
// synthesize, package, upload, notify. Every path reaches a terminal
// outcome; nothing escapes to the worker loop.
type ProcessTaskUseCase struct {
	store    port.ArtifactStore
	provider port.TranslationProvider
	zipper   port.Zipper
	notifier port.Notifier
	dlq      port.DeadLetter
	repo     port.JobRepository
	logger   *zap.Logger

	tempDir         string
	maxRetries      int
	retryBackoff    time.Duration
	downloadBaseURL string
}

type ProcessTaskConfig struct {
	TempDir         string
	MaxRetries      int
	RetryBackoff    time.Duration
	DownloadBaseURL string
}

func NewProcessTaskUseCase(
	store port.ArtifactStore,
	provider port.TranslationProvider,
	zipper port.Zipper,
	notifier port.Notifier,
	dlq port.DeadLetter,
	repo port.JobRepository,
	logger *zap.Logger,
	cfg ProcessTaskConfig,
) *ProcessTaskUseCase {
	return &ProcessTaskUseCase{
		store:           store,
		provider:        provider,
		zipper:          zipper,
		notifier:        notifier,
		dlq:             dlq,
		repo:            repo,
		logger:          logger,
		tempDir:         cfg.TempDir,
		maxRetries:      cfg.MaxRetries,
		retryBackoff:    cfg.RetryBackoff,
		downloadBaseURL: cfg.DownloadBaseURL,
	}
}

// Execute processes one raw queue message to a terminal outcome. It
// always returns nil once an outcome has been reached and notified;
// the caller acknowledges the message regardless.
func (uc *ProcessTaskUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessTaskUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var task entity.TranslationTask
	if err := json.Unmarshal(rawMsg, &task); err != nil {
		uc.logger.Error("failed to unmarshal task message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		metrics.TasksProcessedTotal.WithLabelValues("malformed").Inc()
		return nil
	}
	if err := task.Validate(); err != nil {
		uc.logger.Error("task message failed validation", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "invalid_task: "+err.Error())
		metrics.TasksProcessedTotal.WithLabelValues("malformed").Inc()
		return nil
	}

	span.SetAttributes(
		attribute.String("task.container", task.ContainerName),
		attribute.String("task.file", task.FileName),
		attribute.String("task.upload_id", task.UploadID()),
	)

	log := uc.logger.With(
		zap.String("container", task.ContainerName),
		zap.String("file", task.FileName),
		zap.String("user_id", task.UserID),
	)

	job := uc.loadJob(ctx, task, log)
	job.MarkProcessing()
	uc.saveJob(ctx, job, log)

	metrics.ActiveTasks.Inc()
	defer metrics.ActiveTasks.Dec()

	uc.runPipeline(ctx, task, job, rawMsg, log)

	metrics.PipelineStageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	return nil
}

func (uc *ProcessTaskUseCase) runPipeline(
	ctx context.Context,
	task entity.TranslationTask,
	job *entity.TranslationJob,
	rawMsg []byte,
	log *zap.Logger,
) {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, task.UploadID())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		uc.failTask(ctx, task, job, nil, "could not prepare local working storage", log)
		return
	}
	defer uc.cleanup(workDir, log)

	// Payment is optional lookup data: the recipient falls back to the
	// task's user id and synthesis defaults off when it is absent.
	payment := uc.lookupPayment(ctx, task, log)

	// Fetch audio. No retry: a missing source blob will not appear on
	// a later attempt.
	dlStart := time.Now()
	ctxDl, spanDl := tracer.Start(ctx, "download_audio")
	localAudioPath := filepath.Join(workDir, filepath.Base(task.FileName))
	if err := uc.store.DownloadFile(ctxDl, task.ContainerName, task.FileName, localAudioPath); err != nil {
		spanDl.End()
		log.Error("failed to download audio", zap.Error(err))
		uc.failTask(ctx, task, job, payment,
			fmt.Sprintf("the uploaded audio file %q could not be retrieved", task.FileName), log)
		return
	}
	spanDl.End()
	metrics.PipelineStageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Translate with bounded retries.
	trStart := time.Now()
	ctxTr, spanTr := tracer.Start(ctx, "translate")
	result, err := uc.translateWithRetry(ctxTr, localAudioPath, task, log)
	spanTr.End()
	if err != nil {
		if port.IsPermanent(err) {
			uc.failTask(ctx, task, job, payment,
				"the translation service rejected the request: "+err.Error(), log)
		} else {
			uc.failTask(ctx, task, job, payment,
				fmt.Sprintf("translation could not be completed after %d attempts", uc.maxRetries+1), log)
		}
		return
	}
	metrics.PipelineStageDuration.WithLabelValues("translate").Observe(time.Since(trStart).Seconds())

	// Persist transcription and translation as text blobs.
	transcriptionPath := filepath.Join(workDir, task.TranscriptionBlob())
	translationPath := filepath.Join(workDir, task.TranslationBlob())
	if err := os.WriteFile(transcriptionPath, []byte(result.Transcription), 0644); err != nil {
		uc.deadLetterFailure(ctx, task, job, payment, rawMsg, "write_transcription: "+err.Error(), log)
		return
	}
	if err := os.WriteFile(translationPath, []byte(result.Translation), 0644); err != nil {
		uc.deadLetterFailure(ctx, task, job, payment, rawMsg, "write_translation: "+err.Error(), log)
		return
	}
	if err := uc.store.UploadText(ctx, task.ContainerName, task.TranscriptionBlob(), result.Transcription); err != nil {
		log.Error("failed to upload transcription", zap.Error(err))
		uc.deadLetterFailure(ctx, task, job, payment, rawMsg, "upload_transcription: "+err.Error(), log)
		return
	}
	if err := uc.store.UploadText(ctx, task.ContainerName, task.TranslationBlob(), result.Translation); err != nil {
		log.Error("failed to upload translation", zap.Error(err))
		uc.deadLetterFailure(ctx, task, job, payment, rawMsg, "upload_translation: "+err.Error(), log)
		return
	}

	// Synthesize only when the payment record asks for it. Best
	// effort: the bundle is complete without synthesized audio.
	synthesizedPath := ""
	if payment != nil && payment.SynthesizedAudio {
		syStart := time.Now()
		ctxSy, spanSy := tracer.Start(ctx, "synthesize")
		synthesizedPath = uc.synthesize(ctxSy, task, result.Translation, workDir, log)
		spanSy.End()
		metrics.PipelineStageDuration.WithLabelValues("synthesize").Observe(time.Since(syStart).Seconds())
	}

	// Package the bundle. Entry names are fixed regardless of blob
	// names.
	zipStart := time.Now()
	ctxZip, spanZip := tracer.Start(ctx, "package")
	zipPath := filepath.Join(workDir, task.ZipBlob())
	entries := []port.ZipEntry{
		{Path: transcriptionPath, Name: "transcription.txt"},
		{Path: translationPath, Name: "translation.txt"},
	}
	if synthesizedPath != "" {
		entries = append(entries, port.ZipEntry{Path: synthesizedPath, Name: "translated-audio.wav"})
	}
	if err := uc.zipper.CreateZip(ctxZip, entries, zipPath); err != nil {
		spanZip.End()
		log.Error("failed to create artifact bundle", zap.Error(err))
		uc.deadLetterFailure(ctx, task, job, payment, rawMsg, "create_zip: "+err.Error(), log)
		return
	}
	if err := uc.store.UploadFile(ctxZip, task.ContainerName, task.ZipBlob(), zipPath, "application/zip"); err != nil {
		spanZip.End()
		log.Error("failed to upload artifact bundle", zap.Error(err))
		uc.deadLetterFailure(ctx, task, job, payment, rawMsg, "upload_zip: "+err.Error(), log)
		return
	}
	spanZip.End()
	metrics.PipelineStageDuration.WithLabelValues("package").Observe(time.Since(zipStart).Seconds())

	// Notify success. The artifacts are already durable; a failed
	// email is logged but does not fail the task.
	recipient := resolveRecipient(payment, task)
	link := fmt.Sprintf("%s/download?containerName=%s&uploadId=%s",
		uc.downloadBaseURL, url.QueryEscape(task.ContainerName), url.QueryEscape(task.UploadID()))
	body := fmt.Sprintf(
		"<p>Your audio translation is complete. You can download the artifacts using the following link:</p>"+
			"<p><a href=%q>Download Translation Artifacts</a></p>", link)
	if err := uc.notifier.Send(ctx, recipient, subjectSuccess, body); err != nil {
		log.Error("failed to send completion notification", zap.Error(err))
	} else {
		metrics.NotificationsSentTotal.WithLabelValues("success").Inc()
	}

	job.MarkCompleted()
	uc.saveJob(ctx, job, log)
	metrics.TasksProcessedTotal.WithLabelValues("completed").Inc()

	log.Info("task completed",
		zap.String("zip_blob", task.ZipBlob()),
		zap.Bool("synthesized", synthesizedPath != ""),
	)
}

// translateWithRetry calls the provider up to maxRetries+1 times with
// a fixed backoff. Permanent failures short-circuit the remaining
// attempts.
func (uc *ProcessTaskUseCase) translateWithRetry(
	ctx context.Context,
	audioPath string,
	task entity.TranslationTask,
	log *zap.Logger,
) (*entity.TranslationResult, error) {
	attempts := uc.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := uc.provider.TranslateAudio(ctx, audioPath, task.LangIn, task.LangOut)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if port.IsPermanent(err) {
			log.Error("provider reported a permanent failure, aborting retries",
				zap.Int("attempt", attempt), zap.Error(err))
			return nil, err
		}

		log.Warn("translation attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)

		if attempt < attempts {
			metrics.ProviderRetriesTotal.WithLabelValues(strconv.Itoa(attempt)).Inc()
			select {
			case <-time.After(uc.retryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("translation failed after %d attempts: %w", attempts, lastErr)
}

// synthesize produces and uploads the synthesized audio. Returns the
// local path on success, empty string otherwise.
func (uc *ProcessTaskUseCase) synthesize(
	ctx context.Context,
	task entity.TranslationTask,
	translation string,
	workDir string,
	log *zap.Logger,
) string {
	path := filepath.Join(workDir, task.SynthesizedBlob())
	if err := uc.provider.SynthesizeAudio(ctx, translation, path); err != nil {
		log.Warn("audio synthesis failed, bundle will not include synthesized audio", zap.Error(err))
		return ""
	}
	if err := uc.store.UploadFile(ctx, task.ContainerName, task.SynthesizedBlob(), path, "audio/wav"); err != nil {
		log.Warn("failed to upload synthesized audio, bundle will not include it", zap.Error(err))
		return ""
	}
	return path
}

// failTask sends the failure notification and records the terminal
// failure.
func (uc *ProcessTaskUseCase) failTask(
	ctx context.Context,
	task entity.TranslationTask,
	job *entity.TranslationJob,
	payment *entity.Payment,
	reason string,
	log *zap.Logger,
) {
	recipient := resolveRecipient(payment, task)
	body := fmt.Sprintf(
		"Your audio translation for %q could not be completed.\r\n\r\n%s\r\n\r\n"+
			"Please try uploading the file again or contact support.\r\n",
		task.FileName, reason,
	)
	if err := uc.notifier.Send(ctx, recipient, subjectFailure, body); err != nil {
		log.Error("failed to send failure notification", zap.Error(err))
	} else {
		metrics.NotificationsSentTotal.WithLabelValues("failure").Inc()
	}

	job.MarkFailed(reason)
	uc.saveJob(ctx, job, log)
	metrics.TasksProcessedTotal.WithLabelValues("failed").Inc()
}

// deadLetterFailure handles post-translation packaging and upload
// failures: the payload is dead-lettered with diagnostic context and
// the task fails, rather than being left to redeliver indefinitely.
func (uc *ProcessTaskUseCase) deadLetterFailure(
	ctx context.Context,
	task entity.TranslationTask,
	job *entity.TranslationJob,
	payment *entity.Payment,
	rawMsg []byte,
	reason string,
	log *zap.Logger,
) {
	if err := uc.dlq.PublishToDLQ(ctx, rawMsg, reason); err != nil {
		log.Error("failed to dead-letter task", zap.String("reason", reason), zap.Error(err))
	}
	metrics.TasksProcessedTotal.WithLabelValues("dead_lettered").Inc()
	uc.failTask(ctx, task, job, payment, "an internal error occurred while packaging the translation artifacts", log)
}

func (uc *ProcessTaskUseCase) lookupPayment(ctx context.Context, task entity.TranslationTask, log *zap.Logger) *entity.Payment {
	var payment entity.Payment
	err := uc.store.GetJSON(ctx, task.ContainerName, paymentBlobName, &payment)
	if err != nil {
		if errors.Is(err, port.ErrBlobNotFound) {
			log.Warn("payment record not found, using task user id as notification recipient")
		} else {
			log.Warn("failed to load payment record", zap.Error(err))
		}
		return nil
	}
	return &payment
}

func (uc *ProcessTaskUseCase) loadJob(ctx context.Context, task entity.TranslationTask, log *zap.Logger) *entity.TranslationJob {
	job, err := uc.repo.FindByUpload(ctx, task.ContainerName, task.FileName)
	if err == nil {
		return job
	}
	job = entity.NewTranslationJob(task)
	if err := uc.repo.Create(ctx, job); err != nil {
		log.Warn("failed to create job record", zap.Error(err))
	}
	return job
}

func (uc *ProcessTaskUseCase) saveJob(ctx context.Context, job *entity.TranslationJob, log *zap.Logger) {
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Warn("failed to update job record", zap.Error(err))
	}
}

// cleanup deletes every temporary file the run created, success or
// failure. Errors are logged, never propagated.
func (uc *ProcessTaskUseCase) cleanup(workDir string, log *zap.Logger) {
	if err := os.RemoveAll(workDir); err != nil {
		log.Error("failed to remove temporary working directory",
			zap.String("dir", workDir), zap.Error(err))
	}
}

func resolveRecipient(payment *entity.Payment, task entity.TranslationTask) string {
	if payment != nil && payment.UserEmail != "" {
		return payment.UserEmail
	}
	return task.UserID
}
