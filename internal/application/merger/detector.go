// Package merger detecta posiciones "No" repetidas dentro de un evento
// neg-risk y las convierte de vuelta a colateral a través del submitter.
package merger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/alejandrodnm/automerger/internal/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config contiene los parámetros del detector.
type Config struct {
	ProxyWallet   string
	Interval      time.Duration
	SnapshotDelay time.Duration
	SubmitSpacing time.Duration
	MaxBackoff    time.Duration
	MinSize       decimal.Decimal
	PairMerges    bool
	DryRun        bool
}

// Detector es el loop principal: snapshot, espera, snapshot, agrupar, dedup, enviar.
type Detector struct {
	cfg       Config
	positions ports.PositionProvider
	events    ports.EventProvider
	dedup     ports.DedupStore
	submitter ports.MergeSubmitter
	journal   ports.Journal  // opcional
	notifier  ports.Notifier // opcional
	clock     Clock

	state atomic.Int32
}

// New crea un Detector con todas las dependencias inyectadas.
// journal y notifier pueden ser nil.
func New(
	cfg Config,
	positions ports.PositionProvider,
	events ports.EventProvider,
	dedup ports.DedupStore,
	submitter ports.MergeSubmitter,
	journal ports.Journal,
	notifier ports.Notifier,
) *Detector {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.MaxBackoff < cfg.Interval {
		cfg.MaxBackoff = cfg.Interval
	}
	return &Detector{
		cfg:       cfg,
		positions: positions,
		events:    events,
		dedup:     dedup,
		submitter: submitter,
		journal:   journal,
		notifier:  notifier,
		clock:     realClock{},
	}
}

// SetClock reemplaza el reloj (tests).
func (d *Detector) SetClock(c Clock) {
	d.clock = c
}

// State devuelve la fase actual.
func (d *Detector) State() State {
	return State(d.state.Load())
}

func (d *Detector) setState(s State) {
	d.state.Store(int32(s))
}

// Run ejecuta ciclos hasta que el contexto se cancele. Tras un ciclo fallido
// la espera crece como interval·2^n hasta MaxBackoff; un ciclo bueno la resetea.
func (d *Detector) Run(ctx context.Context) error {
	slog.Info("merger starting",
		"wallet", d.cfg.ProxyWallet,
		"interval", d.cfg.Interval,
		"snapshot_delay", d.cfg.SnapshotDelay,
		"min_size", d.cfg.MinSize,
		"pair_merges", d.cfg.PairMerges,
		"dry_run", d.cfg.DryRun,
	)

	failures := 0
	for {
		res := d.runCycle(ctx)
		if ctx.Err() != nil {
			slog.Info("merger stopped")
			return nil
		}

		wait := d.cfg.Interval
		if res.Failed() {
			failures++
			wait = d.backoff(failures)
			slog.Warn("merger backing off", "failures", failures, "wait", wait)
		} else {
			failures = 0
		}

		if err := d.clock.Sleep(ctx, wait); err != nil {
			slog.Info("merger stopped")
			return nil
		}
	}
}

// backoff devuelve interval·2^n acotado por MaxBackoff.
func (d *Detector) backoff(n int) time.Duration {
	wait := d.cfg.Interval
	for i := 0; i < n; i++ {
		wait *= 2
		if wait >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	return wait
}

// RunOnce ejecuta exactamente un ciclo, lo persiste y lo notifica.
func (d *Detector) RunOnce(ctx context.Context) domain.CycleResult {
	return d.runCycle(ctx)
}

func (d *Detector) runCycle(ctx context.Context) domain.CycleResult {
	res := d.cycle(ctx)

	if res.Failed() {
		slog.Error("merge cycle failed", "class", domain.ErrorClass(res.Err), "err", res.Err)
	} else {
		slog.Info("merge cycle complete",
			"positions", res.Positions,
			"groups", len(res.Groups),
			"submitted", res.Count(domain.StatusSubmitted)+res.Count(domain.StatusDryRun),
			"cooldown", res.Count(domain.StatusCooldown),
			"failed", res.Count(domain.StatusFailed),
			"duration", res.Duration.Round(time.Millisecond),
		)
	}

	// persistencia y notificación no deben morir con el contexto del ciclo
	bg := context.WithoutCancel(ctx)
	if d.journal != nil {
		if err := d.journal.SaveCycle(bg, res); err != nil {
			slog.Warn("journal error", "err", err)
		}
	}
	if d.notifier != nil {
		if err := d.notifier.NotifyCycle(bg, res); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}
	return res
}

// cycle recorre Snapshot1 → Snapshot2 → GroupAndMatch → DedupCheck → Submit.
func (d *Detector) cycle(ctx context.Context) (res domain.CycleResult) {
	start := d.clock.Now()
	res = domain.CycleResult{ID: uuid.NewString(), StartedAt: start.UTC()}
	defer func() {
		res.Duration = d.clock.Now().Sub(start)
		d.setState(StateIdle)
	}()

	d.setState(StateSnapshot1)
	first, err := d.positions.FetchPositions(ctx, d.cfg.ProxyWallet)
	if err != nil {
		res.Err = fmt.Errorf("merger.cycle: snapshot 1: %w", err)
		return res
	}
	if err := d.clock.Sleep(ctx, d.cfg.SnapshotDelay); err != nil {
		res.Err = fmt.Errorf("merger.cycle: %w", err)
		return res
	}

	d.setState(StateSnapshot2)
	second, err := d.positions.FetchPositions(ctx, d.cfg.ProxyWallet)
	if err != nil {
		res.Err = fmt.Errorf("merger.cycle: snapshot 2: %w", err)
		return res
	}
	res.Positions = len(second)

	d.setState(StateGroupAndMatch)
	groups := matchGroups(first, second, d.cfg.MinSize)
	var pairs []domain.MergeRequest
	if d.cfg.PairMerges {
		pairs = matchPairs(first, second, d.cfg.MinSize)
	}
	res.Candidates = len(groups) + len(pairs)

	for _, g := range groups {
		if ctx.Err() != nil {
			break
		}
		res.Groups = append(res.Groups, d.processGroup(ctx, g))
	}
	for _, p := range pairs {
		if ctx.Err() != nil {
			break
		}
		res.Groups = append(res.Groups, d.processPair(ctx, p))
	}
	return res
}

// processGroup resuelve metadata, construye el index set y envía el convert.
// Los errores quedan aislados en el GroupOutcome.
func (d *Detector) processGroup(ctx context.Context, g domain.MergeGroup) domain.GroupOutcome {
	out := domain.GroupOutcome{Kind: domain.KindConvert, EventSlug: g.EventSlug, Amount: g.Amount}

	d.setState(StateGroupAndMatch)
	g, err := d.resolve(ctx, g)
	if err != nil {
		out.Status = domain.StatusSkipped
		out.Err = err
		if errors.Is(err, domain.ErrMetadataNotFound) {
			slog.Debug("group skipped: no metadata", "event", g.EventSlug, "err", err)
		} else {
			slog.Warn("group skipped", "event", g.EventSlug, "class", domain.ErrorClass(err), "err", err)
		}
		return out
	}
	out.Target = g.MarketID

	set, err := g.IndexSet()
	if err != nil {
		out.Status = domain.StatusSkipped
		out.Err = fmt.Errorf("merger.processGroup: %w", err)
		return out
	}
	out.IndexSet = set.String()

	if !d.admit(ctx, domain.NewDedupKey(g.Amount, g.MarketID), &out) {
		return out
	}

	d.setState(StateSubmit)
	sub, err := d.submitter.SubmitConvert(ctx, domain.ConvertRequest{
		EventSlug: g.EventSlug,
		MarketID:  g.MarketID,
		IndexSet:  set,
		Amount:    g.Amount,
	})
	return d.afterSubmit(ctx, out, sub, err)
}

// processPair envía un merge Yes+No de un mercado binario.
func (d *Detector) processPair(ctx context.Context, req domain.MergeRequest) domain.GroupOutcome {
	out := domain.GroupOutcome{Kind: domain.KindMerge, EventSlug: req.Slug, Target: req.ConditionID, Amount: req.Amount}

	if !d.admit(ctx, domain.NewDedupKey(req.Amount, req.ConditionID), &out) {
		return out
	}

	d.setState(StateSubmit)
	sub, err := d.submitter.SubmitMerge(ctx, req)
	return d.afterSubmit(ctx, out, sub, err)
}

// admit consulta el dedup store. Si no se admite, deja el estado final en out.
func (d *Detector) admit(ctx context.Context, key domain.DedupKey, out *domain.GroupOutcome) bool {
	d.setState(StateDedupCheck)
	ok, err := d.dedup.Admit(ctx, key, d.clock.Now())
	if err != nil {
		out.Status = domain.StatusFailed
		out.Err = fmt.Errorf("merger.admit: %w", err)
		slog.Warn("dedup check failed", "key", key.String(), "err", err)
		return false
	}
	if !ok {
		out.Status = domain.StatusCooldown
		slog.Debug("group in cooldown", "key", key.String())
		return false
	}
	return true
}

func (d *Detector) afterSubmit(ctx context.Context, out domain.GroupOutcome, sub domain.Submission, err error) domain.GroupOutcome {
	if sub.ID != "" {
		out.Submission = &sub
		if d.journal != nil {
			if jerr := d.journal.SaveSubmission(context.WithoutCancel(ctx), sub); jerr != nil {
				slog.Warn("journal error", "err", jerr)
			}
		}
	}

	switch {
	case err == nil && sub.DryRun:
		out.Status = domain.StatusDryRun
	case err == nil:
		out.Status = domain.StatusSubmitted
	case errors.Is(err, domain.ErrCredentialsNotReady):
		out.Status = domain.StatusDeferred
		out.Err = err
		slog.Warn("submission deferred: relay credentials not ready", "event", out.EventSlug)
	default:
		out.Status = domain.StatusFailed
		out.Err = err
		slog.Error("submission failed",
			"kind", out.Kind, "event", out.EventSlug, "target", out.Target,
			"amount", out.Amount, "class", domain.ErrorClass(err), "err", err)
	}

	// espaciado entre envíos, haya salido bien o no
	if serr := d.clock.Sleep(ctx, d.cfg.SubmitSpacing); serr != nil {
		slog.Debug("submit spacing interrupted", "err", serr)
	}
	return out
}

// resolve completa MarketID y Slots del grupo con la metadata del evento.
func (d *Detector) resolve(ctx context.Context, g domain.MergeGroup) (domain.MergeGroup, error) {
	event, err := d.events.FetchEvent(ctx, g.EventSlug)
	if err != nil {
		return g, fmt.Errorf("merger.resolve: %w", err)
	}
	if !event.NegRisk || event.NegRiskMarketID == "" {
		return g, fmt.Errorf("merger.resolve: %w: event %s is not neg-risk", domain.ErrMetadataNotFound, g.EventSlug)
	}
	g.MarketID = event.NegRiskMarketID

	slots := make([]int, 0, len(g.Slugs))
	for _, slug := range g.Slugs {
		m, ok := event.Market(slug)
		if !ok {
			return g, fmt.Errorf("merger.resolve: %w: market %s not in event %s", domain.ErrMetadataNotFound, slug, g.EventSlug)
		}
		slot, err := m.Slot()
		if err != nil {
			return g, fmt.Errorf("merger.resolve: %s: %w", slug, err)
		}
		slots = append(slots, slot)
	}
	g.Slots = slots
	return g, nil
}
