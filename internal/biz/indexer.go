package biz

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// Outcome 单个要素一次处理的结果。
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeIndexed
	OutcomeSuppressed
	OutcomeDropped
	OutcomeDeleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIndexed:
		return "indexed"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeDropped:
		return "dropped"
	case OutcomeDeleted:
		return "deleted"
	}
	return "skipped"
}

// IndexObserver 索引结果观察者（指标）。
type IndexObserver interface {
	ObservePlace(outcome Outcome, rankSearch int, d time.Duration)
	ObserveEvents(events []ReindexEvent)
}

type nopObserver struct{}

func (nopObserver) ObservePlace(Outcome, int, time.Duration) {}
func (nopObserver) ObserveEvents([]ReindexEvent)            {}

// IndexUsecase 对单个要素执行一次完整的索引。
// 所有读取与外部调用先完成，最后在一个事务中提交。
type IndexUsecase struct {
	places       PlaceRepo
	locators     LocatorRegistry
	classifier   *RankClassifier
	materializer *TokenMaterializer
	resolver     *AddressResolver
	merger       *LinkedPlaceMerger
	propagator   *ReindexPropagator
	events       EventQueue
	observer     IndexObserver
	log          *log.Helper
}

func NewIndexUsecase(
	places PlaceRepo,
	locators LocatorRegistry,
	classifier *RankClassifier,
	materializer *TokenMaterializer,
	resolver *AddressResolver,
	merger *LinkedPlaceMerger,
	propagator *ReindexPropagator,
	events EventQueue,
	observer IndexObserver,
	logger log.Logger,
) *IndexUsecase {
	if observer == nil {
		observer = nopObserver{}
	}
	return &IndexUsecase{
		places:       places,
		locators:     locators,
		classifier:   classifier,
		materializer: materializer,
		resolver:     resolver,
		merger:       merger,
		propagator:   propagator,
		events:       events,
		observer:     observer,
		log:          log.NewHelper(logger),
	}
}

// IndexPlace 处理一个待索引或待删除的要素。
// 提交时若 indexed_status 已被并发修改，返回 ErrStatusChanged，要素保持待处理。
func (uc *IndexUsecase) IndexPlace(ctx context.Context, id int64) (Outcome, error) {
	start := time.Now()
	p, err := uc.places.Get(ctx, id)
	if IsNotFound(err) {
		return OutcomeSkipped, nil
	}
	if err != nil {
		return OutcomeSkipped, err
	}
	var outcome Outcome
	switch {
	case p.IndexedStatus == StatusPendingDelete:
		outcome, err = uc.delete(ctx, p)
	case !p.IndexedStatus.Pending():
		return OutcomeSkipped, nil
	case p.LinkedPlaceID != 0:
		outcome, err = uc.suppress(ctx, p)
	default:
		outcome, err = uc.index(ctx, p)
	}
	if err != nil {
		return OutcomeSkipped, err
	}
	uc.observer.ObservePlace(outcome, p.RankSearch, time.Since(start))
	return outcome, nil
}

func (uc *IndexUsecase) index(ctx context.Context, p *Place) (Outcome, error) {
	observed := p.IndexedStatus
	ranks, ok := uc.classifier.Classify(RankInputOf(p))
	if !ok {
		uc.log.WithContext(ctx).Debugf("drop place %d (%s/%s): not classifiable", p.PlaceID, p.Class, p.Type)
		p.RankSearch, p.RankAddress = 30, 0
		if err := uc.places.CommitPass(ctx, &PassResult{Place: p, ObservedStatus: observed, Suppressed: true}); err != nil {
			return OutcomeSkipped, err
		}
		uc.locators.Remove(p.PlaceID)
		return OutcomeDropped, nil
	}
	p.RankSearch, p.RankAddress, p.CountryCode = ranks.Search, ranks.Address, ranks.CountryCode
	p.Importance = BaseImportance(p.RankSearch)
	p.Centroid = ComputeCentroid(p.Geometry)
	p.MergedName, p.MergedExtraTags = nil, nil

	var events []ReindexEvent
	links := map[int64]int64{}
	if p.Kind() == KindArea && (p.IsAdministrative() || p.Class == "place") {
		lo, err := uc.merger.Apply(ctx, p)
		if err != nil {
			return OutcomeSkipped, err
		}
		if lo.Linked != nil {
			links[lo.Linked.PlaceID] = p.PlaceID
			if lo.Linked.LinkedPlaceID != p.PlaceID {
				events = append(events, ReindexEvent{PlaceID: lo.Linked.PlaceID, Reason: ReasonLinked, Source: p.PlaceID})
			}
		}
		for _, id := range lo.Unlinked {
			links[id] = 0
			events = append(events, ReindexEvent{PlaceID: id, Reason: ReasonUnlinked, Source: p.PlaceID})
		}
	}

	info, err := uc.materializer.Materialize(ctx, p)
	if err != nil {
		return OutcomeSkipped, err
	}
	p.HouseNumber = info.HouseNumber

	res, err := uc.resolver.Resolve(ctx, p, info)
	if err != nil {
		return OutcomeSkipped, err
	}
	p.ParentPlaceID = res.ParentPlaceID
	p.Postcode = res.Postcode
	if p.CountryCode == "" && p.RankSearch >= 4 {
		p.CountryCode = res.CountryCode
	}

	var entry *SearchEntry
	if p.RankAddress > 0 || len(info.Names) > 0 {
		entry = &SearchEntry{
			PlaceID:       p.PlaceID,
			RankSearch:    p.RankSearch,
			RankAddress:   p.RankAddress,
			Importance:    p.Importance,
			CountryCode:   p.CountryCode,
			NameTokens:    info.Names,
			AddressTokens: UnionTokens(info.AddressTokens, res.AddressTokens),
			Centroid:      p.Centroid,
		}
	}

	deps, err := uc.propagator.Dependents(ctx, p)
	if err != nil {
		return OutcomeSkipped, err
	}
	events = append(events, deps...)

	result := &PassResult{
		Place:          p,
		ObservedStatus: observed,
		Lines:          res.Lines,
		Search:         entry,
		Links:          links,
		Raise:          EventIDs(deps),
	}
	if err := uc.places.CommitPass(ctx, result); err != nil {
		return OutcomeSkipped, err
	}

	var nameTokens []int64
	if entry != nil {
		nameTokens = entry.NameTokens
	}
	if le := LocatorEntryOf(p, nameTokens); le != nil {
		if err := uc.locators.Upsert(le); err != nil {
			return OutcomeSkipped, err
		}
	} else {
		uc.locators.Remove(p.PlaceID)
	}
	if err := uc.publish(ctx, events); err != nil {
		return OutcomeSkipped, err
	}
	return OutcomeIndexed, nil
}

// suppress 已被边界合并的点：清理派生数据，不参与定位。
func (uc *IndexUsecase) suppress(ctx context.Context, p *Place) (Outcome, error) {
	if err := uc.places.CommitPass(ctx, &PassResult{Place: p, ObservedStatus: p.IndexedStatus, Suppressed: true}); err != nil {
		return OutcomeSkipped, err
	}
	uc.locators.Remove(p.PlaceID)
	return OutcomeSuppressed, nil
}

func (uc *IndexUsecase) delete(ctx context.Context, p *Place) (Outcome, error) {
	res, err := uc.places.Delete(ctx, p)
	if err != nil {
		return OutcomeSkipped, err
	}
	uc.locators.Remove(p.PlaceID)
	if err := uc.publish(ctx, DeleteEvents(p.PlaceID, res)); err != nil {
		return OutcomeSkipped, err
	}
	return OutcomeDeleted, nil
}

func (uc *IndexUsecase) publish(ctx context.Context, events []ReindexEvent) error {
	if len(events) == 0 {
		return nil
	}
	uc.observer.ObserveEvents(events)
	return uc.events.Publish(ctx, events...)
}

// RebuildLocators 启动时从已索引数据重建空间定位器。
func (uc *IndexUsecase) RebuildLocators(ctx context.Context) (int, error) {
	n := 0
	err := uc.places.ScanIndexed(ctx, func(p *Place, entry *SearchEntry) error {
		var tokens []int64
		if entry != nil {
			tokens = entry.NameTokens
		}
		le := LocatorEntryOf(p, tokens)
		if le == nil {
			return nil
		}
		n++
		return uc.locators.Upsert(le)
	})
	if err != nil {
		return n, err
	}
	uc.log.WithContext(ctx).Infof("spatial locator rebuilt with %d entries", n)
	return n, nil
}
