package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/signalbox/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm is the Store backed by a gorm connection (sqlite or mysql).
type Gorm struct {
	db *gorm.DB
}

// NewGorm wraps an already-migrated connection.
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("store: %s: %w: %w", op, ErrUnavailable, err)
}

func (g *Gorm) GetAgent(ctx context.Context, name string) (*models.Agent, error) {
	var a models.Agent
	err := g.db.WithContext(ctx).Where("name = ?", name).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get agent "+name, err)
	}
	return &a, nil
}

func (g *Gorm) ListAgents(ctx context.Context, group string) ([]models.Agent, error) {
	q := g.db.WithContext(ctx).Order("name ASC")
	if group != "" {
		q = q.Where("agent_group = ?", group)
	}
	var agents []models.Agent
	if err := q.Find(&agents).Error; err != nil {
		return nil, unavailable("list agents", err)
	}
	return agents, nil
}

func (g *Gorm) GroupCounts(ctx context.Context) ([]GroupCount, error) {
	var rows []GroupCount
	err := g.db.WithContext(ctx).Model(&models.Agent{}).
		Select("agent_group AS name, COUNT(*) AS count").
		Group("agent_group").
		Order("agent_group ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, unavailable("group counts", err)
	}
	return rows, nil
}

func (g *Gorm) SaveAgent(ctx context.Context, agent models.Agent, evict Match) (*models.Agent, []models.Agent, error) {
	agent = normalizeAgent(agent)
	var (
		saved   models.Agent
		evicted []models.Agent
	)

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if where, args := evict.Where(); where != "" {
			q := tx.Where("name <> ?", agent.Name).Where(where, args...)
			if err := q.Find(&evicted).Error; err != nil {
				return unavailable("find colliding agents", err)
			}
			if len(evicted) > 0 {
				names := make([]string, len(evicted))
				for i, e := range evicted {
					names[i] = e.Name
				}
				if err := tx.Where("name IN ?", names).Delete(&models.Agent{}).Error; err != nil {
					return unavailable("evict colliding agents", err)
				}
			}
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"agent_group", "description", "pane_id", "stable_pane", "registered_at"}),
		}).Create(&agent).Error
		if err != nil {
			return unavailable("save agent "+agent.Name, err)
		}

		if where, args := MatchAgent(agent).Where(); where != "" {
			var n int64
			if err := tx.Model(&models.Agent{}).Where("name <> ?", agent.Name).Where(where, args...).Count(&n).Error; err != nil {
				return unavailable("verify pane ownership", err)
			}
			if n > 0 {
				return fmt.Errorf("store: save agent %s: %w", agent.Name, ErrCollision)
			}
		}

		if err := tx.Where("name = ?", agent.Name).First(&saved).Error; err != nil {
			return unavailable("reload agent "+agent.Name, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &saved, evicted, nil
}

func (g *Gorm) DeleteAgent(ctx context.Context, name string) (*models.Agent, error) {
	return g.DeleteAgentIf(ctx, name, nil)
}

// sameAddresses matches a's row only while its pane columns are unchanged.
func sameAddresses(tx *gorm.DB, a models.Agent) *gorm.DB {
	tx = tx.Where("name = ?", a.Name)
	if a.PaneID == nil {
		tx = tx.Where("pane_id IS NULL")
	} else {
		tx = tx.Where("pane_id = ?", *a.PaneID)
	}
	if a.StablePane == nil {
		return tx.Where("stable_pane IS NULL")
	}
	return tx.Where("stable_pane = ?", *a.StablePane)
}

func (g *Gorm) DeleteAgentIf(ctx context.Context, name string, cond func(models.Agent) bool) (*models.Agent, error) {
	var snapshot *models.Agent
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Agent
		err := tx.Where("name = ?", name).First(&a).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return unavailable("read agent "+name, err)
		}
		if cond != nil && !cond(a) {
			return nil
		}
		res := sameAddresses(tx, a).Delete(&models.Agent{})
		if res.Error != nil {
			return unavailable("delete agent "+name, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		snapshot = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// nextValue increments the named counter inside tx, creating it on first use.
func nextValue(tx *gorm.DB, name string) (uint64, error) {
	res := tx.Model(&models.Counter{}).Where("name = ?", name).
		UpdateColumn("value", gorm.Expr("value + ?", 1))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		if err := tx.Create(&models.Counter{Name: name, Value: 1}).Error; err != nil {
			return 0, err
		}
		return 1, nil
	}
	var c models.Counter
	if err := tx.Where("name = ?", name).First(&c).Error; err != nil {
		return 0, err
	}
	return c.Value, nil
}

func (g *Gorm) AppendMessage(ctx context.Context, msg *models.Message) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := nextValue(tx, models.MessageCounter)
		if err != nil {
			return err
		}
		msg.ID = id
		return tx.Create(msg).Error
	})
	if err != nil {
		return unavailable("append message", err)
	}
	return nil
}

func (g *Gorm) ChannelMessages(ctx context.Context, channel string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := g.db.WithContext(ctx).
		Where("channel = ?", channel).
		Order("id DESC").Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, unavailable("channel history "+channel, err)
	}
	return msgs, nil
}

func (g *Gorm) DirectMessages(ctx context.Context, a, b string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := g.db.WithContext(ctx).
		Where("type = ?", models.MessageDM).
		Where("((from_agent = ? AND to_agent = ?) OR (from_agent = ? AND to_agent = ?))", a, b, b, a).
		Order("id DESC").Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, unavailable("dm history", err)
	}
	return msgs, nil
}

func (g *Gorm) MessagesSince(ctx context.Context, since uint64, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := g.db.WithContext(ctx).
		Where("id > ?", since).
		Order("id ASC").Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, unavailable("messages since", err)
	}
	return msgs, nil
}

func (g *Gorm) ChannelCounts(ctx context.Context) ([]ChannelCount, error) {
	var rows []ChannelCount
	err := g.db.WithContext(ctx).Model(&models.Message{}).
		Select("channel AS name, COUNT(*) AS count").
		Where("channel IS NOT NULL AND channel <> ''").
		Group("channel").
		Order("channel ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, unavailable("channel counts", err)
	}
	return rows, nil
}

type typeCount struct {
	Type  string
	Count int64
}

func (g *Gorm) MessageTypeCounts(ctx context.Context) (map[string]int64, error) {
	var rows []typeCount
	err := g.db.WithContext(ctx).Model(&models.Message{}).
		Select("type, COUNT(*) AS count").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, unavailable("message counts", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Type] = r.Count
	}
	return out, nil
}
