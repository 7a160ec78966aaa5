package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"nexusai/internal/logger"
	"nexusai/internal/models"
	"nexusai/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthService struct {
	repo    UserRepo
	tokens  TokenRepo
	usage   *UsageService
	history HistoryRepo
}

func NewAuthService(repo UserRepo, tokens TokenRepo, usage *UsageService, history HistoryRepo) *AuthService {
	return &AuthService{repo: repo, tokens: tokens, usage: usage, history: history}
}

type UserRepo interface {
	IsEmailTaken(ctx context.Context, email string) (bool, error)
	IsNameTaken(ctx context.Context, name string) (bool, error)
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByName(ctx context.Context, name string) (*models.User, error)
	GetAllUsersPaginated(ctx context.Context, limit, offset int) ([]*models.User, int, error)
	UpdateUserFields(ctx context.Context, id string, input *models.UpdateUserRequest) error
	SetMembership(ctx context.Context, id string, isVip bool, membershipType string, expiry *time.Time) error
	ExpireMemberships(ctx context.Context) error
	DeleteUserByID(ctx context.Context, id string) error
	CountUsers(ctx context.Context) (total, admins, vips int, err error)
}

type TokenRepo interface {
	SaveRefreshToken(ctx context.Context, userID string, token string) error
	IsRefreshTokenValid(ctx context.Context, userID string, token string) (bool, error)
	DeleteRefreshToken(ctx context.Context, userID string, token string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

type HistoryRepo interface {
	DeleteByUser(ctx context.Context, userID string) error
}

// RegisterUser создаёт пользователя и инициализирует его квоты.
func (s *AuthService) RegisterUser(ctx context.Context, input *models.User, plainPassword string) error {
	logger.Log.Info("Регистрация пользователя (service)", zap.String("name", input.Name), zap.String("email", input.Email))

	if len(plainPassword) < 6 {
		return errors.New("пароль должен быть не короче 6 символов")
	}
	if exists, err := s.repo.IsEmailTaken(ctx, input.Email); exists || err != nil {
		if err != nil {
			logger.Log.Error("Ошибка проверки email", zap.Error(err))
		}
		return errors.New("адрес электронной почты уже зарегистрирован")
	}
	if exists, err := s.repo.IsNameTaken(ctx, input.Name); exists || err != nil {
		if err != nil {
			logger.Log.Error("Ошибка проверки имени", zap.Error(err))
		}
		return errors.New("имя пользователя уже занято")
	}

	hashed, err := utils.HashPassword(plainPassword)
	if err != nil {
		logger.Log.Error("Ошибка хеширования пароля", zap.Error(err))
		return err
	}

	now := time.Now().UTC()
	input.ID = uuid.NewString()
	input.PasswordHash = hashed
	input.Role = "user"
	input.MembershipType = models.MembershipFree
	input.CreatedAt = now
	input.UpdatedAt = now

	if err := s.repo.CreateUser(ctx, input); err != nil {
		logger.Log.Error("Ошибка создания пользователя", zap.Error(err))
		return err
	}

	if err := s.usage.Initialize(ctx, input.ID); err != nil {
		logger.Log.Error("Ошибка инициализации квот при регистрации", zap.Error(err))
		return err
	}

	logger.Log.Info("Пользователь зарегистрирован (service)", zap.String("user_id", input.ID))
	return nil
}

// findUserByIdentifier: email, если есть '@', иначе имя.
func (s *AuthService) findUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return nil, errors.New("пустой логин")
	}
	if strings.Contains(id, "@") {
		return s.repo.GetUserByEmail(ctx, id)
	}
	return s.repo.GetUserByName(ctx, id)
}

func (s *AuthService) LoginUser(
	ctx context.Context,
	identifier, password, jwtSecret string,
	accessTTL, refreshTTL time.Duration,
) (string, string, *models.User, error) {
	logger.Log.Info("Попытка входа (service)", zap.String("identifier", identifier))

	user, err := s.findUserByIdentifier(ctx, identifier)
	if err != nil {
		logger.Log.Warn("Пользователь не найден (service)", zap.String("identifier", identifier), zap.Error(err))
		return "", "", nil, errors.New("пользователь не найден")
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		logger.Log.Warn("Неверный пароль (service)", zap.String("user_id", user.ID))
		return "", "", nil, errors.New("неверный пароль")
	}

	accessToken, err := utils.GenerateToken(jwtSecret, user.ID, user.Role, accessTTL, "access")
	if err != nil {
		logger.Log.Error("Ошибка генерации access-токена", zap.Error(err))
		return "", "", nil, err
	}

	refreshToken, err := utils.GenerateToken(jwtSecret, user.ID, user.Role, refreshTTL, "refresh")
	if err != nil {
		logger.Log.Error("Ошибка генерации refresh-токена", zap.Error(err))
		return "", "", nil, err
	}

	if err := s.tokens.SaveRefreshToken(ctx, user.ID, refreshToken); err != nil {
		logger.Log.Error("Ошибка сохранения refresh-токена", zap.Error(err))
		return "", "", nil, err
	}

	// Квоты могли не создаться у старых аккаунтов — добьём недостающие.
	_ = s.usage.Initialize(ctx, user.ID)

	logger.Log.Info("Вход выполнен (service)", zap.String("user_id", user.ID))
	return accessToken, refreshToken, user, nil
}

func (s *AuthService) ValidateRefreshToken(ctx context.Context, userID string, token string) (bool, error) {
	logger.Log.Debug("Проверка refresh токена (service)", zap.String("user_id", userID))
	return s.tokens.IsRefreshTokenValid(ctx, userID, token)
}

func (s *AuthService) Logout(ctx context.Context, userID string, token string) error {
	logger.Log.Info("Выход пользователя (service)", zap.String("user_id", userID))
	return s.tokens.DeleteRefreshToken(ctx, userID, token)
}

func (s *AuthService) GetUsersPaginated(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	return s.repo.GetAllUsersPaginated(ctx, limit, offset)
}

func (s *AuthService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	logger.Log.Debug("Получение пользователя по ID (service)", zap.String("user_id", id))
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		logger.Log.Warn("Пользователь не найден по ID (service)", zap.String("user_id", id), zap.Error(err))
	}
	return user, err
}

// CheckPaymentStatus — чистая проекция User.isVip.
func (s *AuthService) CheckPaymentStatus(ctx context.Context, userID string) (bool, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsVip, nil
}

func (s *AuthService) UpdateUser(ctx context.Context, id string, input *models.UpdateUserRequest) error {
	logger.Log.Info("Обновление пользователя (service)", zap.String("user_id", id))
	if err := s.repo.UpdateUserFields(ctx, id, input); err != nil {
		logger.Log.Error("Ошибка при обновлении пользователя (service)", zap.Error(err), zap.String("user_id", id))
		return err
	}
	return nil
}

// GrantMembership выдаёт членство по тарифу: annual — на год,
// lifetime и agent — бессрочно.
func (s *AuthService) GrantMembership(ctx context.Context, userID, planType string) error {
	logger.Log.Info("Выдача членства (service)", zap.String("user_id", userID), zap.String("plan", planType))

	var expiry *time.Time
	switch planType {
	case models.MembershipAnnual:
		t := time.Now().UTC().Add(365 * 24 * time.Hour)
		expiry = &t
	case models.MembershipLifetime, models.MembershipAgent:
		expiry = nil
	default:
		return ErrInvalidPlan
	}

	return s.repo.SetMembership(ctx, userID, true, planType, expiry)
}

// RevokeMembership возвращает пользователя на бесплатный тариф.
func (s *AuthService) RevokeMembership(ctx context.Context, userID string) error {
	logger.Log.Info("Снятие членства (service)", zap.String("user_id", userID))
	return s.repo.SetMembership(ctx, userID, false, models.MembershipFree, nil)
}

// ExpireMemberships — периодическая чистка истёкших годовых членств.
func (s *AuthService) ExpireMemberships(ctx context.Context) error {
	return s.repo.ExpireMemberships(ctx)
}

// DeleteUserByID удаляет пользователя вместе со всем его пространством
// ключей: счётчики квот, refresh-токены и история озвучек тоже.
func (s *AuthService) DeleteUserByID(ctx context.Context, id string) error {
	logger.Log.Info("Удаление пользователя (service)", zap.String("user_id", id))

	if err := s.repo.DeleteUserByID(ctx, id); err != nil {
		logger.Log.Error("Ошибка удаления пользователя (service)", zap.String("user_id", id), zap.Error(err))
		return err
	}
	if err := s.usage.DeleteAll(ctx, id); err != nil {
		logger.Log.Error("Ошибка удаления счётчиков (service)", zap.String("user_id", id), zap.Error(err))
		return err
	}
	if err := s.tokens.DeleteAllForUser(ctx, id); err != nil {
		return err
	}
	return s.history.DeleteByUser(ctx, id)
}

func (s *AuthService) CountUsers(ctx context.Context) (total, admins, vips int, err error) {
	return s.repo.CountUsers(ctx)
}
