package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/tcn-network/banshare-api/internal/dto"
	"github.com/tcn-network/banshare-api/internal/gateway"
	"github.com/tcn-network/banshare-api/internal/metrics"
	"github.com/tcn-network/banshare-api/internal/models"
	"github.com/tcn-network/banshare-api/internal/store"
	"gorm.io/datatypes"
)

// RedactedUser replaces reviewer IDs shown to non-observers.
const RedactedUser = "10000000000000000000"

// BanshareStore is the guarded persistence the workflow runs on.
type BanshareStore interface {
	Insert(ctx context.Context, b *models.Banshare) error
	Get(ctx context.Context, message string) (*models.Banshare, error)
	Exists(ctx context.Context, message string) (bool, error)
	UpdateWhere(ctx context.Context, message string, guard store.Guard, fields map[string]interface{}) (bool, error)
	AddExecutor(ctx context.Context, message string, executor models.BanshareExecutor) (bool, error)
	RemoveExecutor(ctx context.Context, message, guild string) (bool, error)
	AddCrossposts(ctx context.Context, message string, entries []models.BanshareCrosspost) (int64, error)
	Crossposts(ctx context.Context, message string) ([]models.BanshareCrosspost, error)
	AddReport(ctx context.Context, message string, report models.BanshareReport) error
	Pending(ctx context.Context) ([]string, error)
	Archive(ctx context.Context, message, deletedBy string, reason *string) (*models.Banshare, error)
}

// EnforcementGateway is the bot that posts banshares and performs the bans.
type EnforcementGateway interface {
	Create(ctx context.Context, req gateway.CreateRequest) (string, error)
	Notify(ctx context.Context, kind gateway.Kind, message string, payload gateway.Payload) error
	MessageExists(ctx context.Context, message string) (bool, error)
}

// GuildSettings is the read side of guild configuration the workflow needs.
type GuildSettings interface {
	Get(ctx context.Context, guild string) (*models.BanshareSettings, error)
	NoButton(ctx context.Context, guild string) (bool, error)
}

type GuildDirectory interface {
	GuildName(ctx context.Context, guild string) (string, error)
}

type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

type BanshareService struct {
	store    BanshareStore
	settings GuildSettings
	gateway  EnforcementGateway
	guilds   GuildDirectory
	audit    AuditSink
	now      func() time.Time
}

func NewBanshareService(banshares BanshareStore, settings GuildSettings, gw EnforcementGateway, guilds GuildDirectory, audit AuditSink) *BanshareService {
	return &BanshareService{
		store:    banshares,
		settings: settings,
		gateway:  gw,
		guilds:   guilds,
		audit:    audit,
		now:      time.Now,
	}
}

// Create validates a submission, has the bot post it for review and stores it
// under the message ID the bot returns. Nothing is stored if the bot fails.
func (s *BanshareService) Create(ctx context.Context, author string, req dto.CreateBanshareRequest) (string, error) {
	severity, idList, err := validateCreate(createInput{
		Author:     author,
		IDs:        req.IDs,
		Reason:     req.Reason,
		Evidence:   req.Evidence,
		Severity:   req.Severity,
		SkipChecks: req.SkipChecks,
	})
	if err != nil {
		return "", err
	}

	serverName, err := s.guilds.GuildName(ctx, req.Server)
	if err != nil {
		return "", err
	}

	message, err := s.gateway.Create(ctx, gateway.CreateRequest{
		Author:         author,
		IDs:            req.IDs,
		IDList:         idList,
		Reason:         req.Reason,
		Evidence:       req.Evidence,
		Severity:       string(severity),
		Urgent:         req.Urgent,
		SkipValidation: req.SkipValidation,
		ServerName:     serverName,
	})
	if err != nil {
		return "", gatewayError(err)
	}

	now := s.now()
	banshare := &models.Banshare{
		Message:  message,
		Status:   models.BanshareStatusPending,
		Urgent:   req.Urgent,
		Severity: severity,
		IDs:      req.IDs,
		IDList:   datatypes.JSONSlice[string](idList),
		Reason:   req.Reason,
		Evidence: req.Evidence,
		Server:   req.Server,
		Author:   author,
		Created:  now,
		Reminded: now,
	}
	if err := s.store.Insert(ctx, banshare); err != nil {
		// The bot already posted the report; there is nothing to roll back to.
		metrics.Compensations.WithLabelValues(AuditBanshareCreate, "failed").Inc()
		s.reportInconsistency(AuditBanshareCreate, message, err)
		return "", internal("An error occurred saving the banshare.", err)
	}

	s.committed(ctx, AuditEntry{
		Actor:   author,
		Action:  AuditBanshareCreate,
		Subject: message,
		After:   banshare,
		Reason:  req.Reason,
	})
	return message, nil
}

// ChangeSeverity edits the severity of a pending banshare.
func (s *BanshareService) ChangeSeverity(ctx context.Context, actor, message, severity string) error {
	next, err := ParseSeverity(severity)
	if err != nil {
		return err
	}

	current, err := s.get(ctx, message)
	if err != nil {
		return err
	}
	if current.Status != models.BanshareStatusPending {
		return invalidState("That banshare is no longer pending.")
	}
	if current.Severity == next {
		return notModified()
	}
	prev := current.Severity

	ok, err := s.store.UpdateWhere(ctx, message,
		store.Guard{Status: models.BanshareStatusPending, Severity: prev},
		map[string]interface{}{"severity": next})
	if err != nil {
		return internal("An error occurred updating the banshare.", err)
	}
	if !ok {
		metrics.Conflicts.WithLabelValues(AuditBanshareSeverity).Inc()
		return invalidState("That banshare is no longer pending.")
	}

	if err := s.gateway.Notify(ctx, gateway.KindSeverity, message, gateway.Payload{Severity: string(next)}); err != nil {
		s.compensate(ctx, AuditBanshareSeverity, message, err, func(ctx context.Context) (bool, error) {
			return s.store.UpdateWhere(ctx, message,
				store.Guard{Status: models.BanshareStatusPending, Severity: next},
				map[string]interface{}{"severity": prev})
		})
		return gatewayError(err)
	}

	s.committed(ctx, AuditEntry{
		Actor:   actor,
		Action:  AuditBanshareSeverity,
		Subject: message,
		Before:  map[string]interface{}{"severity": prev},
		After:   map[string]interface{}{"severity": next},
	})
	return nil
}

func (s *BanshareService) Reject(ctx context.Context, actor, message string) error {
	return s.review(ctx, actor, message, review{
		action: AuditBanshareReject,
		kind:   gateway.KindReject,
		from:   models.BanshareStatusPending,
		to:     models.BanshareStatusRejected,
		set:    map[string]interface{}{"rejecter": actor},
		unset:  []string{"rejecter"},
	})
}

// Publish makes a pending banshare visible network-wide. The bot evaluates
// every guild's autoban policy when it is told.
func (s *BanshareService) Publish(ctx context.Context, actor, message string) error {
	return s.review(ctx, actor, message, review{
		action: AuditBansharePublish,
		kind:   gateway.KindPublish,
		from:   models.BanshareStatusPending,
		to:     models.BanshareStatusPublished,
		set:    map[string]interface{}{"publisher": actor},
		unset:  []string{"publisher"},
	})
}

func (s *BanshareService) Rescind(ctx context.Context, actor, message, explanation string) error {
	if err := checkLength(explanation, maxExplanationLength, "Banshare rescind explanation must be 1-1800 characters."); err != nil {
		return err
	}
	return s.review(ctx, actor, message, review{
		action: AuditBanshareRescind,
		kind:   gateway.KindRescind,
		from:   models.BanshareStatusPublished,
		to:     models.BanshareStatusRescinded,
		set:    map[string]interface{}{"rescinder": actor, "explanation": explanation},
		unset:  []string{"rescinder", "explanation"},
		reason: explanation,
	})
}

// review is a status transition made by an observer.
type review struct {
	action string
	kind   gateway.Kind
	from   models.BanshareStatus
	to     models.BanshareStatus
	set    map[string]interface{}
	unset  []string
	reason string
}

func (s *BanshareService) review(ctx context.Context, actor, message string, r review) error {
	exists, err := s.store.Exists(ctx, message)
	if err != nil {
		return internal("An error occurred loading the banshare.", err)
	}
	if !exists {
		return missingBanshare(message)
	}

	fields := map[string]interface{}{"status": r.to}
	for k, v := range r.set {
		fields[k] = v
	}
	ok, err := s.store.UpdateWhere(ctx, message, store.Guard{Status: r.from}, fields)
	if err != nil {
		return internal("An error occurred updating the banshare.", err)
	}
	if !ok {
		metrics.Conflicts.WithLabelValues(r.action).Inc()
		return s.conflict(ctx, message, r.from)
	}

	if err := s.gateway.Notify(ctx, r.kind, message, gateway.Payload{}); err != nil {
		revert := map[string]interface{}{"status": r.from}
		for _, k := range r.unset {
			revert[k] = nil
		}
		s.compensate(ctx, r.action, message, err, func(ctx context.Context) (bool, error) {
			return s.store.UpdateWhere(ctx, message, store.Guard{Status: r.to}, revert)
		})
		return gatewayError(err)
	}

	s.committed(ctx, AuditEntry{
		Actor:   actor,
		Action:  r.action,
		Subject: message,
		Before:  map[string]interface{}{"status": r.from},
		After:   fields,
		Reason:  r.reason,
	})
	return nil
}

// conflict explains why a guarded transition out of from did not apply.
func (s *BanshareService) conflict(ctx context.Context, message string, from models.BanshareStatus) error {
	if from == models.BanshareStatusPending {
		return invalidState("That banshare is no longer pending.")
	}
	current, err := s.store.Get(ctx, message)
	if err == nil && current.Status.Terminal() {
		return invalidState(fmt.Sprintf("That banshare has already been %s.", current.Status))
	}
	return invalidState("That banshare is not published.")
}

// Execute records enforcement of a published banshare in guild. Each guild can
// execute a banshare once. Automatic executions were already carried out by
// the bot, so it is only told about manual ones.
func (s *BanshareService) Execute(ctx context.Context, actor, message, guild string, auto bool) error {
	exists, err := s.store.Exists(ctx, message)
	if err != nil {
		return internal("An error occurred loading the banshare.", err)
	}
	if !exists {
		return missingBanshare(message)
	}

	if !auto {
		disabled, err := s.settings.NoButton(ctx, guild)
		if err != nil {
			return internal("An error occurred loading banshare settings.", err)
		}
		if disabled {
			return newError(ErrFeatureDisabled, CodeFeatureDisabled, "This guild has disabled the ban button setting.")
		}
	}

	ok, err := s.store.AddExecutor(ctx, message, models.BanshareExecutor{
		Guild:    guild,
		Executor: actor,
		Auto:     auto,
	})
	if err != nil {
		return internal("An error occurred updating the banshare.", err)
	}
	if !ok {
		metrics.Conflicts.WithLabelValues(AuditBanshareExecute).Inc()
		return invalidState("That banshare is already executed or was rescinded.")
	}

	if !auto {
		if err := s.gateway.Notify(ctx, gateway.KindExecute, message, gateway.Payload{Guild: guild}); err != nil {
			s.compensate(ctx, AuditBanshareExecute, message, err, func(ctx context.Context) (bool, error) {
				return s.store.RemoveExecutor(ctx, message, guild)
			})
			return gatewayError(err)
		}
	}

	s.committed(ctx, AuditEntry{
		Actor:   actor,
		Action:  AuditBanshareExecute,
		Subject: message,
		Data:    map[string]interface{}{"guild": guild, "auto": auto},
	})
	return nil
}

// RegisterCrossposts records where the bot propagated a banshare. Guilds that
// already have a crosspost are skipped, so the bot may resend the same list.
func (s *BanshareService) RegisterCrossposts(ctx context.Context, actor, message string, entries []dto.Crosspost) (int64, error) {
	rows := make([]models.BanshareCrosspost, 0, len(entries))
	for _, e := range entries {
		if e.Guild == "" || e.Channel == "" || e.Message == "" {
			return 0, invalid("Each crosspost needs a guild, channel and message.")
		}
		rows = append(rows, models.BanshareCrosspost{Guild: e.Guild, Channel: e.Channel, Message: e.Message})
	}

	added, err := s.store.AddCrossposts(ctx, message, rows)
	if errors.Is(err, store.ErrNotFound) {
		return 0, missingBanshare(message)
	}
	if err != nil {
		return 0, internal("An error occurred updating the banshare.", err)
	}

	s.committed(ctx, AuditEntry{
		Actor:   actor,
		Action:  AuditBanshareCrosspost,
		Subject: message,
		Data:    map[string]interface{}{"crossposts": entries, "added": added},
	})
	return added, nil
}

func (s *BanshareService) Crossposts(ctx context.Context, message string) ([]dto.Crosspost, error) {
	rows, err := s.store.Crossposts(ctx, message)
	if errors.Is(err, store.ErrNotFound) {
		return nil, missingBanshare(message)
	}
	if err != nil {
		return nil, internal("An error occurred loading the banshare.", err)
	}
	out := make([]dto.Crosspost, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.Crosspost{Guild: r.Guild, Channel: r.Channel, Message: r.Message})
	}
	return out, nil
}

func (s *BanshareService) Crosspost(ctx context.Context, message, guild string) (dto.CrosspostLocation, error) {
	rows, err := s.Crossposts(ctx, message)
	if err != nil {
		return dto.CrosspostLocation{}, err
	}
	for _, r := range rows {
		if r.Guild == guild {
			return dto.CrosspostLocation{Channel: r.Channel, Message: r.Message}, nil
		}
	}
	return dto.CrosspostLocation{}, newError(ErrNotFound, CodeMissingCrosspost, "This banshare has not been crossposted to the guild.")
}

// Report files an abuse or false-positive report against a banshare. The bot
// is told on a best-effort basis.
func (s *BanshareService) Report(ctx context.Context, reporter, message, reason string) error {
	if err := checkLength(reason, maxReportLength, "Banshare report reason must be 1-1800 characters."); err != nil {
		return err
	}

	err := s.store.AddReport(ctx, message, models.BanshareReport{
		ID:       uuid.NewString(),
		Reporter: reporter,
		Reason:   reason,
	})
	if errors.Is(err, store.ErrNotFound) {
		return missingBanshare(message)
	}
	if err != nil {
		return internal("An error occurred saving the report.", err)
	}

	if err := s.gateway.Notify(ctx, gateway.KindReport, message, gateway.Payload{User: reporter, Reason: reason}); err != nil {
		slog.Warn("failed to notify bot of banshare report", "action", AuditBanshareReport, "banshare", message, "actor", reporter, "error", err)
	}

	s.committed(ctx, AuditEntry{
		Actor:   reporter,
		Action:  AuditBanshareReport,
		Subject: message,
		Reason:  reason,
	})
	return nil
}

// Delete archives a banshare whose message was already removed from Discord.
func (s *BanshareService) Delete(ctx context.Context, actor, message, reason string) error {
	exists, err := s.store.Exists(ctx, message)
	if err != nil {
		return internal("An error occurred loading the banshare.", err)
	}
	if !exists {
		return missingBanshare(message)
	}

	visible, err := s.gateway.MessageExists(ctx, message)
	if err != nil {
		return gatewayError(err)
	}
	if visible {
		return invalidState("Delete the banshare's message before deleting the banshare.")
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	archived, err := s.store.Archive(ctx, message, actor, reasonPtr)
	if errors.Is(err, store.ErrNotFound) {
		return missingBanshare(message)
	}
	if err != nil {
		return internal("An error occurred deleting the banshare.", err)
	}

	s.committed(ctx, AuditEntry{
		Actor:   actor,
		Action:  AuditBanshareDelete,
		Subject: message,
		Before:  archived,
		Reason:  reason,
	})
	return nil
}

// Get returns a banshare if the viewer may see it. Hidden banshares are
// reported as missing.
func (s *BanshareService) Get(ctx context.Context, viewer Viewer, message string) (*dto.BanshareResponse, error) {
	b, err := s.get(ctx, message)
	if err != nil {
		return nil, err
	}

	released := b.Status == models.BanshareStatusPublished || b.Status == models.BanshareStatusRescinded
	if !viewer.Internal && !viewer.Council && b.Author != viewer.ID && !(released && viewer.BanshareStaffer) {
		return nil, missingBanshare(message)
	}

	resp := &dto.BanshareResponse{
		Message:     b.Message,
		Status:      string(b.Status),
		Urgent:      b.Urgent,
		Severity:    string(b.Severity),
		IDs:         b.IDs,
		IDList:      append([]string{}, b.IDList...),
		Reason:      b.Reason,
		Evidence:    b.Evidence,
		Server:      b.Server,
		Author:      b.Author,
		Created:     b.Created,
		Reminded:    b.Reminded,
		Publisher:   b.Publisher,
		Rejecter:    b.Rejecter,
		Rescinder:   b.Rescinder,
		Explanation: b.Explanation,
	}
	if !viewer.Observer {
		resp.Publisher = redact(resp.Publisher)
		resp.Rejecter = redact(resp.Rejecter)
		resp.Rescinder = redact(resp.Rescinder)
	}
	return resp, nil
}

func redact(user *string) *string {
	if user == nil {
		return nil
	}
	r := RedactedUser
	return &r
}

func (s *BanshareService) Pending(ctx context.Context) ([]string, error) {
	messages, err := s.store.Pending(ctx)
	if err != nil {
		return nil, internal("An error occurred loading banshares.", err)
	}
	return messages, nil
}

// Autoban reports whether guild's policy enforces a published banshare
// automatically against its targets, along with the guild's full rules.
func (s *BanshareService) Autoban(ctx context.Context, message, guild string, isMember bool) (dto.AutobanResponse, error) {
	b, err := s.get(ctx, message)
	if err != nil {
		return dto.AutobanResponse{}, err
	}
	stored, err := s.settings.Get(ctx, guild)
	if err != nil {
		return dto.AutobanResponse{}, internal("An error occurred loading banshare settings.", err)
	}
	field := ResolveSettings(guild, stored).Autoban
	return dto.AutobanResponse{
		Autoban: b.Status == models.BanshareStatusPublished && Decide(field, b.Severity, isMember),
		Rules:   Matrix(field),
	}, nil
}

func (s *BanshareService) get(ctx context.Context, message string) (*models.Banshare, error) {
	b, err := s.store.Get(ctx, message)
	if errors.Is(err, store.ErrNotFound) {
		return nil, missingBanshare(message)
	}
	if err != nil {
		return nil, internal("An error occurred loading the banshare.", err)
	}
	return b, nil
}

func (s *BanshareService) committed(ctx context.Context, entry AuditEntry) {
	metrics.Transitions.WithLabelValues(entry.Action).Inc()
	slog.Info("banshare action committed", "action", entry.Action, "banshare", entry.Subject, "actor", entry.Actor)
	s.audit.Record(ctx, entry)
}

// compensate makes one attempt to undo a committed write after the bot call
// failed. A failed undo leaves the banshare out of sync with Discord.
func (s *BanshareService) compensate(ctx context.Context, action, message string, cause error, undo func(context.Context) (bool, error)) {
	ok, err := undo(context.WithoutCancel(ctx))
	if err == nil && ok {
		metrics.Compensations.WithLabelValues(action, "reverted").Inc()
		slog.Warn("bot call failed, banshare reverted", "action", action, "banshare", message, "error", cause)
		return
	}

	if err == nil {
		err = errors.New("banshare changed before it could be reverted")
	}
	metrics.Compensations.WithLabelValues(action, "failed").Inc()
	s.reportInconsistency(action, message, fmt.Errorf("revert after %v: %w", cause, err))
}

func (s *BanshareService) reportInconsistency(action, message string, err error) {
	slog.Error("banshare out of sync with discord, manual reconciliation needed", "action", action, "banshare", message, "error", err)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("action", action)
		scope.SetTag("banshare", message)
		sentry.CaptureException(err)
	})
}

// gatewayError converts a bot failure into the error returned to callers.
func gatewayError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gateway.ErrUnavailable) {
		return &APIError{Kind: ErrUpstream, Code: CodeBotOffline, Message: "The Discord bot is offline.", Cause: err}
	}
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		if gwErr.Rejected() && gwErr.Message != "" {
			return &APIError{Kind: ErrValidation, Code: CodeInvalidBody, Message: gwErr.Message, Cause: err}
		}
		return upstream(fmt.Sprintf("An unexpected error occurred in an internal Discord bot API request (%s).", gwErr.Route), err)
	}
	return upstream("An unexpected error occurred in an internal Discord bot API request.", err)
}
