// Package events publishes part-merge lifecycle events for downstream
// consumers (search index sync, reporting).
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/thistle/pkg/kafka"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/tracing"
)

// Emitter handles event emission for Thistle
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitMergeCompleted emits a merge.completed event for a committed merge.
func (e *Emitter) EmitMergeCompleted(ctx context.Context, result *models.MergeResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMergeCompleted")
	defer span.End()

	event := &kafka.MergeEvent{
		EventType:     "merge.completed",
		TenantID:      result.TenantID,
		MergeID:       result.ID,
		TargetPartID:  result.TargetPartID,
		SourcePartIDs: result.SourcePartIDs.Data,
		RowsUpdated:   result.RowsUpdated.Data,
		OperatorID:    result.OperatorID,
		Timestamp:     result.CreatedAt,
	}

	if err := e.producer.PublishMergeEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit merge.completed event")
		return err
	}

	return nil
}
