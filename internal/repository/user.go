package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"nexusai/internal/kvstore"
	"nexusai/internal/logger"
	"nexusai/internal/models"

	"go.uber.org/zap"
)

// UserRepository хранит пользователей единым блобом nexusAi_users
// (map[id]StoredUser) и поддерживает зеркальный список vipUsers.
type UserRepository struct {
	store kvstore.Store
}

func NewUserRepository(store kvstore.Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) loadUsers(ctx context.Context) (map[string]*models.StoredUser, error) {
	raw, err := r.store.Get(ctx, kvstore.KeyUsers)
	if errors.Is(err, kvstore.ErrNotFound) {
		return map[string]*models.StoredUser{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeUsers(raw)
}

func decodeUsers(raw []byte) (map[string]*models.StoredUser, error) {
	users := map[string]*models.StoredUser{}
	if len(raw) == 0 {
		return users, nil
	}
	if err := json.Unmarshal(raw, &users); err != nil {
		logger.Log.Error("Повреждён блоб nexusAi_users (repo)", zap.Error(err))
		return nil, ErrCorruptRecord
	}
	return users, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	logger.Log.Info("Создание пользователя (repo)", zap.String("name", user.Name), zap.String("email", user.Email))
	return r.store.Update(ctx, kvstore.KeyUsers, func(old []byte) ([]byte, error) {
		users, err := decodeUsers(old)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if strings.EqualFold(u.Email, user.Email) {
				return nil, errors.New("адрес электронной почты уже зарегистрирован")
			}
		}
		users[user.ID] = user.ToStored()
		return json.Marshal(users)
	})
}

func (r *UserRepository) IsEmailTaken(ctx context.Context, email string) (bool, error) {
	logger.Log.Debug("Проверка email на уникальность (repo)", zap.String("email", email))
	users, err := r.loadUsers(ctx)
	if err != nil {
		logger.Log.Error("Ошибка проверки email (repo)", zap.Error(err))
		return false, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *UserRepository) IsNameTaken(ctx context.Context, name string) (bool, error) {
	logger.Log.Debug("Проверка имени на уникальность (repo)", zap.String("name", name))
	users, err := r.loadUsers(ctx)
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	logger.Log.Debug("Получение пользователя по ID (repo)", zap.String("user_id", id))
	users, err := r.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	su, ok := users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return su.ToUser(), nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	logger.Log.Debug("Получение пользователя по email (repo)", zap.String("email", email))
	users, err := r.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, su := range users {
		if strings.EqualFold(su.Email, email) {
			return su.ToUser(), nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *UserRepository) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	users, err := r.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, su := range users {
		if strings.EqualFold(su.Name, name) {
			return su.ToUser(), nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *UserRepository) GetAllUsersPaginated(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	logger.Log.Info("Получение пользователей постранично (repo)", zap.Int("limit", limit), zap.Int("offset", offset))
	users, err := r.loadUsers(ctx)
	if err != nil {
		return nil, 0, err
	}

	all := make([]*models.User, 0, len(users))
	for _, su := range users {
		all = append(all, su.ToUser())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	total := len(all)
	if offset >= total {
		return []*models.User{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *UserRepository) mutateUser(ctx context.Context, id string, fn func(*models.StoredUser) error) error {
	return r.store.Update(ctx, kvstore.KeyUsers, func(old []byte) ([]byte, error) {
		users, err := decodeUsers(old)
		if err != nil {
			return nil, err
		}
		su, ok := users[id]
		if !ok {
			return nil, ErrUserNotFound
		}
		if err := fn(su); err != nil {
			return nil, err
		}
		su.UpdatedAt = time.Now().UTC()
		return json.Marshal(users)
	})
}

func (r *UserRepository) UpdateUserFields(ctx context.Context, id string, input *models.UpdateUserRequest) error {
	logger.Log.Info("Обновление пользователя (repo)", zap.String("user_id", id))
	if input.Name == nil && input.Email == nil && input.Role == nil {
		logger.Log.Warn("Нет полей для обновления пользователя (repo)", zap.String("user_id", id))
		return nil // ничего не обновляем
	}
	err := r.mutateUser(ctx, id, func(su *models.StoredUser) error {
		if input.Name != nil {
			su.Name = *input.Name
		}
		if input.Email != nil {
			su.Email = *input.Email
		}
		if input.Role != nil {
			su.Role = *input.Role
		}
		return nil
	})
	if err != nil {
		logger.Log.Error("Ошибка обновления пользователя (repo)", zap.Error(err), zap.String("user_id", id))
	}
	return err
}

// SetMembership выставляет членство и синхронизирует список vipUsers.
func (r *UserRepository) SetMembership(ctx context.Context, id string, isVip bool, membershipType string, expiry *time.Time) error {
	logger.Log.Info("Изменение членства (repo)",
		zap.String("user_id", id), zap.Bool("is_vip", isVip), zap.String("type", membershipType))

	err := r.mutateUser(ctx, id, func(su *models.StoredUser) error {
		su.IsVip = isVip
		su.MembershipType = membershipType
		su.MembershipExpiry = expiry
		return nil
	})
	if err != nil {
		logger.Log.Error("Ошибка изменения членства (repo)", zap.Error(err), zap.String("user_id", id))
		return err
	}
	return r.syncVipList(ctx, id, isVip)
}

func (r *UserRepository) syncVipList(ctx context.Context, id string, isVip bool) error {
	return r.store.Update(ctx, kvstore.KeyVipUsers, func(old []byte) ([]byte, error) {
		var vips []string
		if len(old) > 0 {
			if err := json.Unmarshal(old, &vips); err != nil {
				return nil, ErrCorruptRecord
			}
		}
		out := vips[:0]
		for _, v := range vips {
			if v != id {
				out = append(out, v)
			}
		}
		if isVip {
			out = append(out, id)
		}
		return json.Marshal(out)
	})
}

// ExpireMemberships снимает VIP у годовых членств с истёкшим сроком.
func (r *UserRepository) ExpireMemberships(ctx context.Context) error {
	now := time.Now().UTC()
	var expired []string

	err := r.store.Update(ctx, kvstore.KeyUsers, func(old []byte) ([]byte, error) {
		users, err := decodeUsers(old)
		if err != nil {
			return nil, err
		}
		for id, su := range users {
			if su.IsVip && su.MembershipExpiry != nil && su.MembershipExpiry.Before(now) {
				su.IsVip = false
				su.MembershipType = models.MembershipFree
				su.MembershipExpiry = nil
				su.UpdatedAt = now
				expired = append(expired, id)
			}
		}
		if len(expired) == 0 {
			return nil, kvstore.ErrNoChange
		}
		return json.Marshal(users)
	})
	if errors.Is(err, kvstore.ErrNoChange) {
		return nil
	}
	if err != nil {
		logger.Log.Error("Ошибка истечения членств (repo)", zap.Error(err))
		return err
	}

	for _, id := range expired {
		logger.Log.Info("Членство истекло (repo)", zap.String("user_id", id))
		if err := r.syncVipList(ctx, id, false); err != nil {
			return err
		}
	}
	return nil
}

func (r *UserRepository) DeleteUserByID(ctx context.Context, id string) error {
	logger.Log.Info("Удаление пользователя (repo)", zap.String("user_id", id))
	err := r.store.Update(ctx, kvstore.KeyUsers, func(old []byte) ([]byte, error) {
		users, err := decodeUsers(old)
		if err != nil {
			return nil, err
		}
		if _, ok := users[id]; !ok {
			return nil, ErrUserNotFound
		}
		delete(users, id)
		return json.Marshal(users)
	})
	if err != nil {
		logger.Log.Error("Ошибка удаления пользователя (repo)", zap.String("user_id", id), zap.Error(err))
		return err
	}
	return r.syncVipList(ctx, id, false)
}

func (r *UserRepository) CountUsers(ctx context.Context) (total, admins, vips int, err error) {
	users, err := r.loadUsers(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	for _, su := range users {
		total++
		if su.Role == "admin" {
			admins++
		}
		if su.IsVip {
			vips++
		}
	}
	return total, admins, vips, nil
}
