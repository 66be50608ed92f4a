package data

import (
	"context"
	"database/sql"

	"nominatim-indexer/internal/biz"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/go-kratos/kratos/v2/log"
)

const (
	tableRelation       = "osm_relation"
	tableRelationMember = "osm_relation_member"
	tableWayNode        = "osm_way_node"
)

type sourceRepo struct {
	data *Data
	log  *log.Helper
}

// NewSourceRepo .
func NewSourceRepo(data *Data, logger log.Logger) biz.SourceRepo {
	return &sourceRepo{data: data, log: log.NewHelper(logger)}
}

func (r *sourceRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.data.dialect)
}

// SaveRelation 整体替换关系的标签与成员。
func (r *sourceRepo) SaveRelation(ctx context.Context, rel *biz.Relation) error {
	tx, err := r.data.SQLDB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	steps := []entsql.Querier{
		r.builder().Delete(tableRelationMember).Where(entsql.EQ("relation_id", rel.OSMID)),
		r.builder().Delete(tableRelation).Where(entsql.EQ("osm_id", rel.OSMID)),
		r.builder().Insert(tableRelation).Columns("osm_id", "tags").Values(rel.OSMID, encodeTags(rel.Tags)),
	}
	if len(rel.Members) > 0 {
		ins := r.builder().Insert(tableRelationMember).Columns("relation_id", "member_type", "member_ref", "role", "sort")
		for i, m := range rel.Members {
			ins.Values(rel.OSMID, m.Type, m.Ref, m.Role, i+1)
		}
		steps = append(steps, ins)
	}
	for _, step := range steps {
		query, args := step.Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SaveWay 整体替换 way 的节点列表。
func (r *sourceRepo) SaveWay(ctx context.Context, wayID int64, nodes []int64) error {
	tx, err := r.data.SQLDB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	query, args := r.builder().Delete(tableWayNode).Where(entsql.EQ("way_id", wayID)).Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, chunk := range chunks(nodes, batchSize) {
		ins := r.builder().Insert(tableWayNode).Columns("way_id", "node_id", "sort")
		for i, n := range chunk {
			ins.Values(wayID, n, i+1)
		}
		query, args := ins.Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *sourceRepo) Relation(ctx context.Context, osmID int64) (*biz.Relation, error) {
	rels, err := r.relations(ctx, []int64{osmID})
	if err != nil || len(rels) == 0 {
		return nil, err
	}
	return rels[0], nil
}

func (r *sourceRepo) RelationsWithMember(ctx context.Context, memberType string, ref int64) ([]*biz.Relation, error) {
	query, args := r.builder().Select("relation_id").Distinct().
		From(entsql.Table(tableRelationMember)).
		Where(entsql.And(entsql.EQ("member_type", memberType), entsql.EQ("member_ref", ref))).
		OrderBy("relation_id").
		Query()
	ids, err := queryIDs(ctx, r.data.SQLDB(), query, args...)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return r.relations(ctx, ids)
}

func (r *sourceRepo) relations(ctx context.Context, ids []int64) ([]*biz.Relation, error) {
	db := r.data.SQLDB()
	query, args := r.builder().Select("osm_id", "tags").
		From(entsql.Table(tableRelation)).
		Where(entsql.In("osm_id", anySlice(ids)...)).
		OrderBy("osm_id").
		Query()
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var out []*biz.Relation
	byID := map[int64]*biz.Relation{}
	for rows.Next() {
		var (
			rel  biz.Relation
			tags sql.NullString
		)
		if err := rows.Scan(&rel.OSMID, &tags); err != nil {
			rows.Close()
			return nil, err
		}
		rel.Tags = decodeTags(tags)
		out = append(out, &rel)
		byID[rel.OSMID] = &rel
	}
	err = rows.Err()
	rows.Close()
	if err != nil || len(out) == 0 {
		return out, err
	}

	query, args = r.builder().Select("relation_id", "member_type", "member_ref", "role").
		From(entsql.Table(tableRelationMember)).
		Where(entsql.In("relation_id", anySlice(ids)...)).
		OrderBy("relation_id", "sort").
		Query()
	rows, err = db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			relID int64
			m     biz.RelationMember
		)
		if err := rows.Scan(&relID, &m.Type, &m.Ref, &m.Role); err != nil {
			return nil, err
		}
		if rel, ok := byID[relID]; ok {
			rel.Members = append(rel.Members, m)
		}
	}
	return out, rows.Err()
}

func (r *sourceRepo) WaysWithNode(ctx context.Context, nodeID int64) ([]int64, error) {
	query, args := r.builder().Select("way_id").Distinct().
		From(entsql.Table(tableWayNode)).
		Where(entsql.EQ("node_id", nodeID)).
		OrderBy("way_id").
		Query()
	return queryIDs(ctx, r.data.SQLDB(), query, args...)
}
