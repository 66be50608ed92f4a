package data

import (
	"context"
	"database/sql"
	"time"

	"nominatim-indexer/internal/biz"
	"nominatim-indexer/pkg/ent/mixins"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/paulmach/orb"
)

const (
	tablePlace       = "placex"
	tableAddressLine = "place_addressline"
	tableSearchName  = "search_name"
	batchSize        = 500
)

var placeColumns = []string{
	"place_id", "osm_type", "osm_id", "class", "type", "admin_level",
	"name", "address", "extratags", "geometry", "centroid_x", "centroid_y",
	"country_code", "partition", "rank_search", "rank_address", "importance",
	"housenumber", "postcode", "merged_name", "merged_extratags",
	"parent_place_id", "linked_place_id", "indexed_status", "indexed_date", "updated_at",
}

type placeRepo struct {
	data *Data
	log  *log.Helper
}

// NewPlaceRepo .
func NewPlaceRepo(data *Data, logger log.Logger) biz.PlaceRepo {
	return &placeRepo{data: data, log: log.NewHelper(logger)}
}

func (r *placeRepo) db() *sql.DB {
	return r.data.SQLDB()
}

func (r *placeRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.data.dialect)
}

// queryer *sql.DB 与 *sql.Tx 的公共部分。
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *placeRepo) selectPlaces(ctx context.Context, q queryer, where *entsql.Predicate, order ...string) ([]*biz.Place, error) {
	sel := r.builder().Select(placeColumns...).From(entsql.Table(tablePlace)).Where(where)
	if len(order) > 0 {
		sel.OrderBy(order...)
	}
	query, args := sel.Query()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*biz.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlace(rows *sql.Rows) (*biz.Place, error) {
	var (
		p                                      biz.Place
		name, address, extratags, mName, mTags sql.NullString
		cc, hnr, pc                            sql.NullString
		parent, linked, indexedDate            sql.NullInt64
		geom                                   string
		status                                 int
	)
	err := rows.Scan(
		&p.PlaceID, &p.OSMType, &p.OSMID, &p.Class, &p.Type, &p.AdminLevel,
		&name, &address, &extratags, &geom, &p.Centroid[0], &p.Centroid[1],
		&cc, &p.Partition, &p.RankSearch, &p.RankAddress, &p.Importance,
		&hnr, &pc, &mName, &mTags,
		&parent, &linked, &status, &indexedDate, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Geometry, err = decodeGeometry(geom); err != nil {
		return nil, err
	}
	p.Name = decodeTags(name)
	p.Address = decodeTags(address)
	p.ExtraTags = decodeTags(extratags)
	p.MergedName = decodeTags(mName)
	p.MergedExtraTags = decodeTags(mTags)
	p.CountryCode = cc.String
	p.HouseNumber = hnr.String
	p.Postcode = pc.String
	p.ParentPlaceID = parent.Int64
	p.LinkedPlaceID = linked.Int64
	p.IndexedStatus = biz.IndexedStatus(status)
	if indexedDate.Valid {
		p.IndexedDate = time.Unix(indexedDate.Int64, 0)
	}
	return &p, nil
}

func (r *placeRepo) Get(ctx context.Context, id int64) (*biz.Place, error) {
	places, err := r.selectPlaces(ctx, r.db(), entsql.EQ("place_id", id))
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, biz.ErrPlaceNotFound
	}
	return places[0], nil
}

func (r *placeRepo) GetByOSM(ctx context.Context, osmType string, osmID int64, class string) (*biz.Place, error) {
	places, err := r.selectPlaces(ctx, r.db(), entsql.And(
		entsql.EQ("osm_type", osmType),
		entsql.EQ("osm_id", osmID),
		entsql.EQ("class", class),
	))
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, biz.ErrPlaceNotFound
	}
	return places[0], nil
}

func (r *placeRepo) ListByOSM(ctx context.Context, osmType string, osmID int64) ([]*biz.Place, error) {
	return r.selectPlaces(ctx, r.db(), entsql.And(
		entsql.EQ("osm_type", osmType),
		entsql.EQ("osm_id", osmID),
	), "place_id")
}

func (r *placeRepo) Insert(ctx context.Context, p *biz.Place) (int64, error) {
	b := p.Geometry.Bound()
	now := mixins.Now()
	if p.UpdatedAt == 0 {
		p.UpdatedAt = now
	}
	ins := r.builder().Insert(tablePlace).
		Columns(
			"osm_type", "osm_id", "class", "type", "admin_level",
			"name", "address", "extratags", "geometry", "centroid_x", "centroid_y",
			"bbox_min_x", "bbox_min_y", "bbox_max_x", "bbox_max_y",
			"country_code", "partition", "rank_search", "rank_address", "importance",
			"indexed_status", "created_at", "updated_at",
		).
		Values(
			p.OSMType, p.OSMID, p.Class, p.Type, p.AdminLevel,
			encodeTags(p.Name), encodeTags(p.Address), encodeTags(p.ExtraTags), encodeGeometry(p.Geometry), p.Centroid[0], p.Centroid[1],
			b.Min[0], b.Min[1], b.Max[0], b.Max[1],
			nullString(p.CountryCode), p.Partition, p.RankSearch, p.RankAddress, p.Importance,
			int(p.IndexedStatus), now, p.UpdatedAt,
		)
	id, err := r.insertReturningID(ctx, r.db(), ins, "place_id")
	if err != nil {
		return 0, err
	}
	p.PlaceID = id
	return id, nil
}

// insertReturningID postgres 使用 RETURNING，其它方言使用 LastInsertId。
func (r *placeRepo) insertReturningID(ctx context.Context, q queryer, ins *entsql.InsertBuilder, idColumn string) (int64, error) {
	if r.data.dialect == dialect.Postgres {
		ins.Returning(idColumn)
		query, args := ins.Query()
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		var id int64
		if rows.Next() {
			if err := rows.Scan(&id); err != nil {
				return 0, err
			}
		}
		return id, rows.Err()
	}
	query, args := ins.Query()
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *placeRepo) UpdateSource(ctx context.Context, p *biz.Place) error {
	b := p.Geometry.Bound()
	query, args := r.builder().Update(tablePlace).
		Set("type", p.Type).
		Set("admin_level", p.AdminLevel).
		Set("name", encodeTags(p.Name)).
		Set("address", encodeTags(p.Address)).
		Set("extratags", encodeTags(p.ExtraTags)).
		Set("geometry", encodeGeometry(p.Geometry)).
		Set("centroid_x", p.Centroid[0]).
		Set("centroid_y", p.Centroid[1]).
		Set("bbox_min_x", b.Min[0]).
		Set("bbox_min_y", b.Min[1]).
		Set("bbox_max_x", b.Max[0]).
		Set("bbox_max_y", b.Max[1]).
		Set("country_code", nullString(p.CountryCode)).
		Set("partition", p.Partition).
		Set("rank_search", p.RankSearch).
		Set("rank_address", p.RankAddress).
		Set("indexed_status", int(p.IndexedStatus)).
		Set("updated_at", p.UpdatedAt).
		Where(entsql.EQ("place_id", p.PlaceID)).
		Query()
	_, err := r.db().ExecContext(ctx, query, args...)
	return err
}

func (r *placeRepo) MarkDeleted(ctx context.Context, id int64) error {
	query, args := r.builder().Update(tablePlace).
		Set("indexed_status", int(biz.StatusPendingDelete)).
		Where(entsql.EQ("place_id", id)).
		Query()
	_, err := r.db().ExecContext(ctx, query, args...)
	return err
}

// RaiseReindex 只把 DONE 的要素改为 NEEDS_REINDEX。
func (r *placeRepo) RaiseReindex(ctx context.Context, ids []int64) (int64, error) {
	return r.raise(ctx, r.db(), ids)
}

func (r *placeRepo) raise(ctx context.Context, q queryer, ids []int64) (int64, error) {
	var total int64
	for _, chunk := range chunks(ids, batchSize) {
		query, args := r.builder().Update(tablePlace).
			Set("indexed_status", int(biz.StatusNeedsReindex)).
			Where(entsql.And(
				entsql.In("place_id", anySlice(chunk)...),
				entsql.EQ("indexed_status", int(biz.StatusDone)),
			)).
			Query()
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func pendingPredicate() *entsql.Predicate {
	return entsql.In("indexed_status", int(biz.StatusNew), int(biz.StatusNeedsReindex))
}

func (r *placeRepo) PendingRanks(ctx context.Context) ([]int, error) {
	query, args := r.builder().Select("rank_search").Distinct().
		From(entsql.Table(tablePlace)).
		Where(pendingPredicate()).
		OrderBy("rank_search").
		Query()
	return queryInts(ctx, r.db(), query, args...)
}

func (r *placeRepo) ListPending(ctx context.Context, rankSearch int) ([]int64, error) {
	query, args := r.builder().Select("place_id").
		From(entsql.Table(tablePlace)).
		Where(entsql.And(pendingPredicate(), entsql.EQ("rank_search", rankSearch))).
		OrderBy("place_id").
		Query()
	return queryIDs(ctx, r.db(), query, args...)
}

func (r *placeRepo) ListPendingDeletes(ctx context.Context) ([]int64, error) {
	query, args := r.builder().Select("place_id").
		From(entsql.Table(tablePlace)).
		Where(entsql.EQ("indexed_status", int(biz.StatusPendingDelete))).
		OrderBy(entsql.Desc("rank_search"), "place_id").
		Query()
	return queryIDs(ctx, r.db(), query, args...)
}

func (r *placeRepo) CountByStatus(ctx context.Context) (map[biz.IndexedStatus]int64, error) {
	query, args := r.builder().Select("indexed_status", entsql.Count("*")).
		From(entsql.Table(tablePlace)).
		GroupBy("indexed_status").
		Query()
	rows, err := r.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[biz.IndexedStatus]int64{}
	for rows.Next() {
		var status int
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[biz.IndexedStatus(status)] = n
	}
	return out, rows.Err()
}

func boundPredicate(b orb.Bound) *entsql.Predicate {
	return entsql.And(
		entsql.GTE("centroid_x", b.Min[0]),
		entsql.LTE("centroid_x", b.Max[0]),
		entsql.GTE("centroid_y", b.Min[1]),
		entsql.LTE("centroid_y", b.Max[1]),
	)
}

func (r *placeRepo) ListInBound(ctx context.Context, b orb.Bound) ([]*biz.Place, error) {
	return r.selectPlaces(ctx, r.db(), boundPredicate(b), "place_id")
}

func (r *placeRepo) ListPlaceNodesInBound(ctx context.Context, b orb.Bound) ([]*biz.Place, error) {
	return r.selectPlaces(ctx, r.db(), entsql.And(
		boundPredicate(b),
		entsql.EQ("class", "place"),
		entsql.EQ("osm_type", biz.OSMNode),
		entsql.LT("rank_search", 26),
		entsql.NEQ("indexed_status", int(biz.StatusPendingDelete)),
	), "place_id")
}

func (r *placeRepo) ListBoundariesCovering(ctx context.Context, pt orb.Point) ([]*biz.Place, error) {
	return r.selectPlaces(ctx, r.db(), entsql.And(
		entsql.EQ("class", "boundary"),
		entsql.EQ("type", "administrative"),
		entsql.LTE("bbox_min_x", pt[0]),
		entsql.GTE("bbox_max_x", pt[0]),
		entsql.LTE("bbox_min_y", pt[1]),
		entsql.GTE("bbox_max_y", pt[1]),
		entsql.NEQ("indexed_status", int(biz.StatusPendingDelete)),
	), "admin_level", "place_id")
}

func (r *placeRepo) ListLinkedTo(ctx context.Context, id int64) ([]int64, error) {
	query, args := r.builder().Select("place_id").
		From(entsql.Table(tablePlace)).
		Where(entsql.EQ("linked_place_id", id)).
		OrderBy("place_id").
		Query()
	return queryIDs(ctx, r.db(), query, args...)
}

func (r *placeRepo) AddressLines(ctx context.Context, id int64) ([]*biz.AddressLine, error) {
	query, args := r.builder().
		Select("place_id", "address_place_id", "cached_rank_address", "distance", "isaddress", "fromarea").
		From(entsql.Table(tableAddressLine)).
		Where(entsql.EQ("place_id", id)).
		OrderBy(entsql.Desc("cached_rank_address"), "address_place_id").
		Query()
	rows, err := r.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*biz.AddressLine
	for rows.Next() {
		var l biz.AddressLine
		if err := rows.Scan(&l.PlaceID, &l.AncestorPlaceID, &l.RankAddress, &l.Distance, &l.IsAddress, &l.FromArea); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

var searchColumns = []string{
	"place_id", "search_rank", "address_rank", "importance", "country_code",
	"name_vector", "nameaddress_vector", "centroid_x", "centroid_y",
}

func (r *placeRepo) SearchEntry(ctx context.Context, id int64) (*biz.SearchEntry, error) {
	entries, err := r.searchEntries(ctx, r.db(), []int64{id})
	if err != nil {
		return nil, err
	}
	return entries[id], nil
}

func (r *placeRepo) searchEntries(ctx context.Context, q queryer, ids []int64) (map[int64]*biz.SearchEntry, error) {
	out := make(map[int64]*biz.SearchEntry, len(ids))
	for _, chunk := range chunks(ids, batchSize) {
		query, args := r.builder().Select(searchColumns...).
			From(entsql.Table(tableSearchName)).
			Where(entsql.In("place_id", anySlice(chunk)...)).
			Query()
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var (
				e            biz.SearchEntry
				cc           sql.NullString
				names, addrs string
			)
			if err := rows.Scan(&e.PlaceID, &e.RankSearch, &e.RankAddress, &e.Importance, &cc, &names, &addrs, &e.Centroid[0], &e.Centroid[1]); err != nil {
				rows.Close()
				return nil, err
			}
			e.CountryCode = cc.String
			e.NameTokens = decodeTokens(names)
			e.AddressTokens = decodeTokens(addrs)
			out[e.PlaceID] = &e
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CommitPass 在一个事务中写入索引结果；indexed_status 或源数据版本变化时放弃提交。
func (r *placeRepo) CommitPass(ctx context.Context, res *biz.PassResult) error {
	tx, err := r.db().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := r.commitPass(ctx, tx, res); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *placeRepo) commitPass(ctx context.Context, tx *sql.Tx, res *biz.PassResult) error {
	p := res.Place
	query, args := r.builder().Update(tablePlace).
		Set("rank_search", p.RankSearch).
		Set("rank_address", p.RankAddress).
		Set("importance", p.Importance).
		Set("country_code", nullString(p.CountryCode)).
		Set("centroid_x", p.Centroid[0]).
		Set("centroid_y", p.Centroid[1]).
		Set("housenumber", nullString(p.HouseNumber)).
		Set("postcode", nullString(p.Postcode)).
		Set("merged_name", encodeTags(p.MergedName)).
		Set("merged_extratags", encodeTags(p.MergedExtraTags)).
		Set("parent_place_id", nullID(p.ParentPlaceID)).
		Set("indexed_status", int(biz.StatusDone)).
		Set("indexed_date", mixins.Now()).
		Where(entsql.And(
			entsql.EQ("place_id", p.PlaceID),
			entsql.EQ("indexed_status", int(res.ObservedStatus)),
			entsql.EQ("updated_at", p.UpdatedAt),
		)).
		Query()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return biz.ErrStatusChanged
	}

	if err := r.exec(ctx, tx, r.builder().Delete(tableAddressLine).Where(entsql.EQ("place_id", p.PlaceID))); err != nil {
		return err
	}
	if err := r.exec(ctx, tx, r.builder().Delete(tableSearchName).Where(entsql.EQ("place_id", p.PlaceID))); err != nil {
		return err
	}
	if !res.Suppressed {
		if err := r.insertLines(ctx, tx, res.Lines); err != nil {
			return err
		}
		if res.Search != nil {
			if err := r.insertSearch(ctx, tx, res.Search); err != nil {
				return err
			}
		}
	}
	for pointID, target := range res.Links {
		upd := r.builder().Update(tablePlace).Set("linked_place_id", nullID(target)).Where(entsql.EQ("place_id", pointID))
		if err := r.exec(ctx, tx, upd); err != nil {
			return err
		}
	}
	raise := res.Raise
	for pointID := range res.Links {
		raise = append(raise, pointID)
	}
	_, err = r.raise(ctx, tx, raise)
	return err
}

func (r *placeRepo) exec(ctx context.Context, q queryer, b entsql.Querier) error {
	query, args := b.Query()
	_, err := q.ExecContext(ctx, query, args...)
	return err
}

func (r *placeRepo) insertLines(ctx context.Context, q queryer, lines []*biz.AddressLine) error {
	for _, chunk := range chunks(lines, batchSize) {
		ins := r.builder().Insert(tableAddressLine).
			Columns("place_id", "address_place_id", "cached_rank_address", "distance", "isaddress", "fromarea")
		for _, l := range chunk {
			ins.Values(l.PlaceID, l.AncestorPlaceID, l.RankAddress, l.Distance, l.IsAddress, l.FromArea)
		}
		if err := r.exec(ctx, q, ins); err != nil {
			return err
		}
	}
	return nil
}

func (r *placeRepo) insertSearch(ctx context.Context, q queryer, e *biz.SearchEntry) error {
	ins := r.builder().Insert(tableSearchName).
		Columns(searchColumns...).
		Values(e.PlaceID, e.RankSearch, e.RankAddress, e.Importance, nullString(e.CountryCode),
			encodeTokens(e.NameTokens), encodeTokens(e.AddressTokens), e.Centroid[0], e.Centroid[1])
	return r.exec(ctx, q, ins)
}

// Delete 删除 PENDING_DELETE 要素及其派生数据，并标记依赖。
func (r *placeRepo) Delete(ctx context.Context, p *biz.Place) (*biz.DeleteResult, error) {
	tx, err := r.db().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	res, err := r.delete(ctx, tx, p)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return res, tx.Commit()
}

func (r *placeRepo) delete(ctx context.Context, tx *sql.Tx, p *biz.Place) (*biz.DeleteResult, error) {
	query, args := r.builder().Select("place_id").From(entsql.Table(tablePlace)).
		Where(entsql.EQ("parent_place_id", p.PlaceID)).Query()
	children, err := queryIDs(ctx, tx, query, args...)
	if err != nil {
		return nil, err
	}
	query, args = r.builder().Select("place_id").Distinct().From(entsql.Table(tableAddressLine)).
		Where(entsql.EQ("address_place_id", p.PlaceID)).Query()
	descendants, err := queryIDs(ctx, tx, query, args...)
	if err != nil {
		return nil, err
	}
	query, args = r.builder().Select("place_id").From(entsql.Table(tablePlace)).
		Where(entsql.EQ("linked_place_id", p.PlaceID)).Query()
	linked, err := queryIDs(ctx, tx, query, args...)
	if err != nil {
		return nil, err
	}

	query, args = r.builder().Delete(tablePlace).Where(entsql.And(
		entsql.EQ("place_id", p.PlaceID),
		entsql.EQ("indexed_status", int(biz.StatusPendingDelete)),
	)).Query()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, biz.ErrStatusChanged
	}
	steps := []entsql.Querier{
		r.builder().Delete(tableAddressLine).Where(entsql.Or(
			entsql.EQ("place_id", p.PlaceID),
			entsql.EQ("address_place_id", p.PlaceID),
		)),
		r.builder().Delete(tableSearchName).Where(entsql.EQ("place_id", p.PlaceID)),
		r.builder().Update(tablePlace).SetNull("parent_place_id").Where(entsql.EQ("parent_place_id", p.PlaceID)),
		r.builder().Update(tablePlace).SetNull("linked_place_id").Where(entsql.EQ("linked_place_id", p.PlaceID)),
	}
	for _, step := range steps {
		if err := r.exec(ctx, tx, step); err != nil {
			return nil, err
		}
	}

	res := &biz.DeleteResult{Dependents: biz.EventIDs(idEvents(children, descendants)), Unlinked: linked}
	if _, err := r.raise(ctx, tx, append(append([]int64{}, res.Dependents...), linked...)); err != nil {
		return nil, err
	}
	return res, nil
}

func idEvents(lists ...[]int64) []biz.ReindexEvent {
	var out []biz.ReindexEvent
	for _, l := range lists {
		for _, id := range l {
			out = append(out, biz.ReindexEvent{PlaceID: id})
		}
	}
	return out
}

// ScanIndexed 分页遍历已索引且未被合并的要素。
func (r *placeRepo) ScanIndexed(ctx context.Context, fn func(*biz.Place, *biz.SearchEntry) error) error {
	var last int64
	for {
		sel := r.builder().Select(placeColumns...).From(entsql.Table(tablePlace)).
			Where(entsql.And(
				entsql.GT("place_id", last),
				entsql.EQ("indexed_status", int(biz.StatusDone)),
				entsql.IsNull("linked_place_id"),
			)).
			OrderBy("place_id").
			Limit(batchSize)
		query, args := sel.Query()
		places, err := r.scanAll(ctx, query, args...)
		if err != nil {
			return err
		}
		if len(places) == 0 {
			return nil
		}
		ids := make([]int64, len(places))
		for i, p := range places {
			ids[i] = p.PlaceID
		}
		entries, err := r.searchEntries(ctx, r.db(), ids)
		if err != nil {
			return err
		}
		for _, p := range places {
			if err := fn(p, entries[p.PlaceID]); err != nil {
				return err
			}
		}
		last = places[len(places)-1].PlaceID
	}
}

func (r *placeRepo) scanAll(ctx context.Context, query string, args ...any) ([]*biz.Place, error) {
	rows, err := r.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*biz.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func queryIDs(ctx context.Context, q queryer, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func queryInts(ctx context.Context, q queryer, query string, args ...any) ([]int, error) {
	ids, err := queryIDs(ctx, q, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out, nil
}
