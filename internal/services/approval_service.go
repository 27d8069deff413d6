package services

import (
	"context"
	"time"

	"stockledger/internal/caching"
	"stockledger/internal/ledger"
	"stockledger/internal/models"
	"stockledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// ApprovalService resolves scrap requests and pending user registrations.
// Every approval leaves PENDING exactly once.
type ApprovalService interface {
	Resolve(ctx context.Context, approver models.Actor, kind models.ApprovalKind, approvalID uuid.UUID, action models.ApprovalAction) (*models.Resolution, error)
	ListPending(ctx context.Context, actor models.Actor) ([]*models.PendingApproval, error)

	ResolveUser(ctx context.Context, approver models.Actor, userID uuid.UUID, action models.ApprovalAction) (*models.User, error)
	ListPendingUsers(ctx context.Context, actor models.Actor) ([]*models.User, error)
}

type approvalService struct {
	store  repositories.Store
	refs   RefGenerator
	fx     *sideEffects
	logger *logrus.Logger
	now    func() time.Time
}

func NewApprovalService(store repositories.Store, refs RefGenerator, audit AuditLogsService, notifier NotificationService, cache caching.StockCache, logger *logrus.Logger) ApprovalService {
	return &approvalService{
		store:  store,
		refs:   refs,
		fx:     newSideEffects(store, audit, notifier, cache, logger),
		logger: logger,
		now:    time.Now,
	}
}

func (s *approvalService) Resolve(ctx context.Context, approver models.Actor, kind models.ApprovalKind, approvalID uuid.UUID, action models.ApprovalAction) (*models.Resolution, error) {
	ctx, span := tracer.Start(ctx, "approvals.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("approval.id", approvalID.String()), attribute.String("approval.kind", string(kind)))

	status, err := statusFor(action)
	if err != nil {
		return nil, err
	}

	fx := &effects{}
	var res *models.Resolution
	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		switch kind {
		case models.ApprovalKindInventory:
			res, err = s.resolveInventory(ctx, tx, approver, approvalID, status, fx)
		case models.ApprovalKindConsumption:
			res, err = s.resolveConsumption(ctx, tx, approver, approvalID, status, fx)
		default:
			err = ledger.Violation(ledger.ErrValidation, "unknown approval kind %q", kind)
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.fx.flush(approver.UserID, fx)
	return res, nil
}

func (s *approvalService) resolveInventory(ctx context.Context, tx repositories.Store, approver models.Actor, id uuid.UUID, status models.ApprovalStatus, fx *effects) (*models.Resolution, error) {
	approval, err := tx.Approvals().GetInventoryApprovalForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if approval.Status != models.ApprovalPending {
		return nil, ledger.Violation(ledger.ErrAlreadyProcessed, "scrap request %s has already been %s", id, approval.Status)
	}

	inv, err := tx.Inventory().GetForUpdate(ctx, approval.InventoryID)
	if err != nil {
		return nil, err
	}
	plant, err := tx.Plants().GetByID(ctx, inv.PlantID)
	if err != nil {
		return nil, err
	}
	if !ledger.CanResolve(approver, plant.ClusterID) {
		return nil, ledger.Violation(ledger.ErrForbidden, "only a super admin or the manager of the plant's cluster may resolve this request")
	}
	item, err := tx.Items().GetByID(ctx, inv.ItemID)
	if err != nil {
		return nil, err
	}

	at := s.now()
	if err := tx.Approvals().ResolveInventoryApproval(ctx, id, status, approver.UserID, at); err != nil {
		return nil, err
	}

	res := &models.Resolution{
		Kind:        models.ApprovalKindInventory,
		ApprovalID:  id,
		Status:      status,
		ApprovedBy:  approver.UserID,
		ProcessedAt: at,
	}
	if status == models.ApprovalApproved {
		// the consumable buckets were booked at receipt time; only the scrap figure changes
		inv.ScrappedQty = approval.RequestedQty
		inv.UpdatedBy = &approver.UserID
		if err := tx.Inventory().Update(ctx, inv); err != nil {
			return nil, err
		}
		res.InventoryID = &inv.ID
	}

	notice := scrapNotice(id, models.ApprovalKindInventory, plant, item, approval.RequestedQty, "")
	notice.ApproverName = approver.Email
	fx.notifyUser(resolutionNotification(status), approval.RequestedBy, notice)
	fx.audit(resolutionAction(status), models.EntityScrapApproval, id, models.JSONB{
		"inventory_id": inv.ID, "requested_qty": approval.RequestedQty,
	})
	return res, nil
}

func (s *approvalService) resolveConsumption(ctx context.Context, tx repositories.Store, approver models.Actor, id uuid.UUID, status models.ApprovalStatus, fx *effects) (*models.Resolution, error) {
	approval, err := tx.Approvals().GetConsumptionApprovalForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if approval.Status != models.ApprovalPending {
		return nil, ledger.Violation(ledger.ErrAlreadyProcessed, "scrap request %s has already been %s", id, approval.Status)
	}

	c, err := tx.Consumption().GetForUpdate(ctx, approval.ConsumptionID)
	if err != nil {
		return nil, err
	}
	if c.ReturnedItemID == nil {
		return nil, ledger.Violation(ledger.ErrValidation, "consumption %s has no returned item", c.ID)
	}
	plant, err := tx.Plants().GetByID(ctx, c.PlantID)
	if err != nil {
		return nil, err
	}
	if !ledger.CanResolve(approver, plant.ClusterID) {
		return nil, ledger.Violation(ledger.ErrForbidden, "only a super admin or the manager of the plant's cluster may resolve this request")
	}
	returned, err := tx.Items().GetByID(ctx, *c.ReturnedItemID)
	if err != nil {
		return nil, err
	}

	at := s.now()
	if err := tx.Approvals().ResolveConsumptionApproval(ctx, id, status, approver.UserID, at); err != nil {
		return nil, err
	}

	res := &models.Resolution{
		Kind:        models.ApprovalKindConsumption,
		ApprovalID:  id,
		Status:      status,
		ApprovedBy:  approver.UserID,
		ProcessedAt: at,
	}
	retPair := models.StockPair{PlantID: c.PlantID, ItemID: returned.ID}

	if status == models.ApprovalApproved {
		scrap := &models.Inventory{
			ReservationRef: s.refs.ScrapRef(c.ID),
			PlantID:        c.PlantID,
			ItemID:         returned.ID,
			ScrappedQty:    approval.RequestedQty,
			Remarks:        "Scrap approved for item returned on consumption",
			CreatedBy:      approver.UserID,
		}
		if err := tx.Inventory().Create(ctx, scrap); err != nil {
			return nil, err
		}
		res.InventoryID = &scrap.ID
	} else {
		// rejected scrap is booked back as returned old & used stock
		deltas := stockDeltas{}
		deltas.add(retPair, ledger.ReturnEntry(approval.RequestedQty))
		if err := applyDeltas(ctx, tx, deltas); err != nil {
			return nil, err
		}
		if err := tx.Consumption().SetReturnCredited(ctx, c.ID, true); err != nil {
			return nil, err
		}
		fx.touch(retPair)
	}

	notice := scrapNotice(id, models.ApprovalKindConsumption, plant, returned, approval.RequestedQty, "")
	notice.ApproverName = approver.Email
	fx.notifyUser(resolutionNotification(status), approval.RequestedBy, notice)
	fx.audit(resolutionAction(status), models.EntityConsumptionScrapApproval, id, models.JSONB{
		"consumption_id": c.ID, "requested_qty": approval.RequestedQty,
	})
	return res, nil
}

func (s *approvalService) ListPending(ctx context.Context, actor models.Actor) ([]*models.PendingApproval, error) {
	ctx, span := tracer.Start(ctx, "approvals.ListPending")
	defer span.End()

	clusterID, err := approverScope(actor)
	if err != nil {
		return nil, err
	}
	return s.store.Approvals().ListPending(ctx, clusterID)
}

func (s *approvalService) ResolveUser(ctx context.Context, approver models.Actor, userID uuid.UUID, action models.ApprovalAction) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "approvals.ResolveUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID.String()))

	if _, err := statusFor(action); err != nil {
		return nil, err
	}

	fx := &effects{}
	var user *models.User
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		u, plantCluster, err := tx.Users().GetWithPlantCluster(ctx, userID)
		if err != nil {
			return err
		}

		clusterID := u.ClusterID
		if clusterID == nil {
			clusterID = plantCluster
		}
		switch approver.Role {
		case models.RoleSuperAdmin:
		case models.RoleClusterManager:
			if clusterID == nil || !approver.InCluster(*clusterID) {
				return ledger.Violation(ledger.ErrForbidden, "cluster managers may only resolve users of their own cluster")
			}
		default:
			return ledger.Violation(ledger.ErrForbidden, "role %q may not resolve user registrations", approver.Role)
		}

		if u.IsDeleted || u.Status != models.UserStatusPending {
			return ledger.Violation(ledger.ErrAlreadyProcessed, "user %s is not pending approval", u.ID)
		}

		auditAction := models.ActionUserApprove
		if action == models.ActionApprove {
			if err := tx.Users().SetStatus(ctx, u.ID, models.UserStatusActive); err != nil {
				return err
			}
			u.Status = models.UserStatusActive
		} else {
			if err := tx.Users().SetDeleted(ctx, u.ID, true, models.UserStatusInactive); err != nil {
				return err
			}
			u.Status = models.UserStatusInactive
			u.IsDeleted = true
			auditAction = models.ActionUserReject
		}
		user = u

		fx.audit(auditAction, models.EntityUser, u.ID, models.JSONB{"email": u.Email, "role": u.Role})
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.fx.flush(approver.UserID, fx)
	return user, nil
}

func (s *approvalService) ListPendingUsers(ctx context.Context, actor models.Actor) ([]*models.User, error) {
	clusterID, err := approverScope(actor)
	if err != nil {
		return nil, err
	}
	return s.store.Users().ListPending(ctx, clusterID)
}

// approverScope returns the cluster an approver is limited to; nil means all clusters
func approverScope(actor models.Actor) (*uuid.UUID, error) {
	switch actor.Role {
	case models.RoleSuperAdmin:
		return nil, nil
	case models.RoleClusterManager:
		if actor.ClusterID == nil {
			return nil, ledger.Violation(ledger.ErrForbidden, "cluster manager has no cluster assigned")
		}
		return actor.ClusterID, nil
	}
	return nil, ledger.Violation(ledger.ErrForbidden, "role %q may not view approvals", actor.Role)
}

func statusFor(action models.ApprovalAction) (models.ApprovalStatus, error) {
	switch action {
	case models.ActionApprove:
		return models.ApprovalApproved, nil
	case models.ActionReject:
		return models.ApprovalRejected, nil
	}
	return "", ledger.Violation(ledger.ErrValidation, "action must be approve or reject")
}

func resolutionNotification(status models.ApprovalStatus) models.NotificationKind {
	if status == models.ApprovalApproved {
		return models.NotificationScrapApproved
	}
	return models.NotificationScrapRejected
}

func resolutionAction(status models.ApprovalStatus) string {
	if status == models.ApprovalApproved {
		return models.ActionScrapRequestApprove
	}
	return models.ActionScrapRequestReject
}
