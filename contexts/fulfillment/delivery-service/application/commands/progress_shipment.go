package commands

import (
	"context"
	"log/slog"
	"time"

	application "fulfillment/contexts/fulfillment/delivery-service/application"
	"fulfillment/contexts/fulfillment/delivery-service/domain/entities"
	"fulfillment/contexts/fulfillment/delivery-service/ports"
	"fulfillment/internal/shared/events"
)

const sourceService = "delivery-service"

// The operational commands below are driven by carrier webhooks or operator
// tooling, not by saga events, so each emitted envelope starts a fresh causal
// branch on the order's correlation stream. Replaying a command against a
// shipment already at or past the target status is a no-op.

// MarkDispatchedUseCase records the physical handover to the carrier and
// emits shipment.dispatched.
type MarkDispatchedUseCase struct {
	Shipments ports.ShipmentRepository
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc MarkDispatchedUseCase) Execute(ctx context.Context, shipmentID string) (entities.Shipment, error) {
	return progress(ctx, uc.Shipments, uc.Clock, uc.Logger, shipmentID, progressStep{
		atOrPast: []entities.Status{entities.StatusDispatched, entities.StatusInTransit, entities.StatusDelivered},
		apply:    (*entities.Shipment).MarkDispatched,
		buildEnv: func(shipment entities.Shipment, now time.Time) (events.Envelope, error) {
			return events.NewEnvelope(events.TypeShipmentDispatched, sourceService, shipment.OrderID, now, events.ShipmentDispatched{
				OrderID:    shipment.OrderID,
				ShipmentID: shipment.ShipmentID,
			})
		},
		logEvent: "shipment_dispatched",
	})
}

// MarkInTransitUseCase records a carrier in-transit scan. The order service
// does not react to it, so no event is emitted; the status is a read-side
// detail of the shipment.
type MarkInTransitUseCase struct {
	Shipments ports.ShipmentRepository
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc MarkInTransitUseCase) Execute(ctx context.Context, shipmentID string) (entities.Shipment, error) {
	return progress(ctx, uc.Shipments, uc.Clock, uc.Logger, shipmentID, progressStep{
		atOrPast: []entities.Status{entities.StatusInTransit, entities.StatusDelivered},
		apply:    (*entities.Shipment).MarkInTransit,
		logEvent: "shipment_in_transit",
	})
}

// MarkDeliveredUseCase closes the shipment and emits shipment.delivered,
// which completes the order saga.
type MarkDeliveredUseCase struct {
	Shipments ports.ShipmentRepository
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc MarkDeliveredUseCase) Execute(ctx context.Context, shipmentID string) (entities.Shipment, error) {
	return progress(ctx, uc.Shipments, uc.Clock, uc.Logger, shipmentID, progressStep{
		atOrPast: []entities.Status{entities.StatusDelivered},
		apply:    (*entities.Shipment).MarkDelivered,
		buildEnv: func(shipment entities.Shipment, now time.Time) (events.Envelope, error) {
			return events.NewEnvelope(events.TypeShipmentDelivered, sourceService, shipment.OrderID, now, events.ShipmentDelivered{
				OrderID:    shipment.OrderID,
				ShipmentID: shipment.ShipmentID,
			})
		},
		logEvent: "shipment_delivered",
	})
}

type progressStep struct {
	atOrPast []entities.Status
	apply    func(*entities.Shipment, time.Time) error
	buildEnv func(entities.Shipment, time.Time) (events.Envelope, error)
	logEvent string
}

func progress(
	ctx context.Context,
	shipments ports.ShipmentRepository,
	clock ports.Clock,
	logger *slog.Logger,
	shipmentID string,
	step progressStep,
) (entities.Shipment, error) {
	log := application.ResolveLogger(logger)

	shipment, err := shipments.GetShipment(ctx, shipmentID)
	if err != nil {
		return entities.Shipment{}, err
	}
	for _, status := range step.atOrPast {
		if shipment.Status == status {
			return shipment, nil
		}
	}

	now := time.Now().UTC()
	if clock != nil {
		now = clock.Now().UTC()
	}
	if err := step.apply(&shipment, now); err != nil {
		return entities.Shipment{}, err
	}

	var envs []events.Envelope
	if step.buildEnv != nil {
		env, err := step.buildEnv(shipment, now)
		if err != nil {
			return entities.Shipment{}, err
		}
		envs = append(envs, env)
	}
	if err := shipments.SaveShipmentWithOutbox(ctx, shipment, envs); err != nil {
		return entities.Shipment{}, err
	}

	log.Info("shipment progressed",
		"event", step.logEvent,
		"module", "fulfillment/delivery-service",
		"layer", "application",
		"shipment_id", shipment.ShipmentID,
		"order_id", shipment.OrderID,
		"status", shipment.Status,
	)
	return shipment, nil
}
