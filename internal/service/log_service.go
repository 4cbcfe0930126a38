package service

import (
	"context"
	"errors"
	"time"

	"nexus-ai-be/internal/dto"
	"nexus-ai-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// zap's ISO8601 encoder layout
const logTimeLayout = "2006-01-02T15:04:05.000Z0700"

type ILogService interface {
	GetLogs(ctx context.Context, page, limit int, level string) ([]dto.LogListResponse, error)
	GetLogDetail(ctx context.Context, id string) (*dto.LogDetailResponse, error)
}

type logService struct {
	logger logger.ILogger
}

func NewLogService(log logger.ILogger) ILogService {
	return &logService{logger: log}
}

func (s *logService) GetLogs(_ context.Context, page, limit int, level string) ([]dto.LogListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 10
	}

	entries, err := s.logger.GetLogs(level, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	res := make([]dto.LogListResponse, 0, len(entries))
	for _, e := range entries {
		res = append(res, toLogListResponse(e))
	}
	return res, nil
}

func (s *logService) GetLogDetail(_ context.Context, id string) (*dto.LogDetailResponse, error) {
	entry, err := s.logger.GetLogById(id)
	if err != nil {
		if errors.Is(err, logger.ErrLogNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Log not found")
		}
		return nil, err
	}
	return &dto.LogDetailResponse{
		LogListResponse: toLogListResponse(*entry),
		Details:         entry.Details,
	}, nil
}

func toLogListResponse(e logger.LogEntry) dto.LogListResponse {
	createdAt, _ := time.Parse(logTimeLayout, e.Timestamp)
	return dto.LogListResponse{
		Id:        e.Id,
		Level:     e.Level,
		Module:    e.Module,
		Message:   e.Message,
		CreatedAt: createdAt,
	}
}
