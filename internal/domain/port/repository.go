package port

import (
	"context"

	"github.com/mario-guerra/translation-service/internal/domain/entity"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.TranslationJob) error
	Update(ctx context.Context, job *entity.TranslationJob) error
	FindByUpload(ctx context.Context, containerName, fileName string) (*entity.TranslationJob, error)
}
