package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/court-reservation/internal/calendar"
	"github.com/Leganyst/court-reservation/internal/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByName(ctx context.Context, name string) (*model.User, error)
	// Регистрирует участника со статусом pending; имя уникально.
	Register(ctx context.Context, name string, isAdmin bool) (*model.User, error)
	List(ctx context.Context, status model.UserStatus, limit, offset int) ([]model.User, int64, error)
	SetStatus(ctx context.Context, id uuid.UUID, status model.UserStatus, audit *model.Event) error
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func (r *GormUserRepository) FindByName(ctx context.Context, name string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("name = ?", normalizeName(name)).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) Register(ctx context.Context, name string, isAdmin bool) (*model.User, error) {
	u := model.User{
		Name:    normalizeName(name),
		Status:  model.UserStatusPending,
		IsAdmin: isAdmin,
	}
	if u.Name == "" {
		return nil, calendar.Validationf("name is required")
	}
	if err := r.db.WithContext(ctx).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, calendar.Validationf("name %q is already taken", u.Name)
		}
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) List(
	ctx context.Context,
	status model.UserStatus,
	limit, offset int,
) ([]model.User, int64, error) {
	var (
		users []model.User
		total int64
	)
	q := r.db.WithContext(ctx).Model(&model.User{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Order("name ASC").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *GormUserRepository) SetStatus(ctx context.Context, id uuid.UUID, status model.UserStatus, audit *model.Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).Where("id = ?", id).Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if audit != nil {
			return tx.Create(audit).Error
		}
		return nil
	})
}

// FindMember реализует calendar.MemberStore.
// Неизвестный или некорректный id: это nil без ошибки.
func (r *GormUserRepository) FindMember(ctx context.Context, id string) (*calendar.Member, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}
	u, err := r.FindByID(ctx, uid)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ToMember(*u)
}
