package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nexusai/internal/config"
	"nexusai/internal/logger"
	"nexusai/internal/middleware"
	"nexusai/internal/models"
	"nexusai/internal/services"
	"nexusai/internal/utils"
	helpers "nexusai/internal/utils/helpers"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService  *services.AuthService
	usageService *services.UsageService
}

func NewAuthHandler(authService *services.AuthService, usageService *services.UsageService) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		usageService: usageService,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"` // email или имя
	Password   string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	IsVip        bool   `json:"isVip"`
}

// Register godoc
// @Summary Регистрация нового пользователя
// @Tags auth
// @Accept json
// @Produce json
// @Param input body registerRequest true "Данные регистрации"
// @Success 201 {string} string "Пользователь успешно зарегистрирован"
// @Failure 400 {string} string "Ошибка валидации"
// @Router /api/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.Warn("Ошибка декодирования JSON в Register", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		helpers.Error(w, http.StatusBadRequest, "Имя и email обязательны")
		return
	}

	user := &models.User{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
	}

	if err := h.authService.RegisterUser(r.Context(), user, req.Password); err != nil {
		logger.Log.Error("Ошибка регистрации пользователя", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	helpers.JSON(w, http.StatusCreated, "Пользователь успешно зарегистрирован")
}

// Login godoc
// @Summary Авторизация пользователя
// @Tags auth
// @Accept json
// @Produce json
// @Param input body loginRequest true "Данные для входа"
// @Success 200 {object} loginResponse
// @Failure 401 {string} string "Неверный логин или пароль"
// @Router /api/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.Warn("Ошибка декодирования JSON в Login", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	cfg, _ := config.LoadConfig()
	accessTTL, _ := time.ParseDuration(cfg.AccessTokenTTL)
	refreshTTL, _ := time.ParseDuration(cfg.RefreshTokenTTL)

	access, refresh, user, err := h.authService.LoginUser(
		r.Context(),
		req.Identifier,
		req.Password,
		cfg.JWTSecret,
		accessTTL,
		refreshTTL,
	)
	if err != nil {
		logger.Log.Warn("Ошибка входа пользователя", zap.String("identifier", req.Identifier), zap.Error(err))
		helpers.Error(w, http.StatusUnauthorized, err.Error())
		return
	}

	helpers.JSON(w, http.StatusOK, loginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Role:         user.Role,
		IsVip:        user.IsVip,
	})
}

// Refresh godoc
// @Summary Обновление access-токена
// @Tags auth
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]string
// @Failure 401 {string} string "Недействительный refresh токен"
// @Router /api/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		logger.Log.Warn("Отсутствует refresh token в Refresh")
		helpers.Error(w, http.StatusUnauthorized, "Отсутствует refresh token")
		return
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	cfg, _ := config.LoadConfig()
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		logger.Log.Warn("Неверный или просроченный refresh token", zap.Error(err))
		helpers.Error(w, http.StatusUnauthorized, "Неверный или просроченный refresh token")
		return
	}

	userID, ok1 := claims["user_id"].(string)
	role, ok2 := claims["role"].(string)
	if !ok1 || !ok2 {
		logger.Log.Error("Неверный payload токена", zap.Any("claims", claims))
		helpers.Error(w, http.StatusUnauthorized, "Неверный payload токена")
		return
	}

	isValid, err := h.authService.ValidateRefreshToken(r.Context(), userID, tokenString)
	if err != nil || !isValid {
		logger.Log.Warn("Недействительный refresh token", zap.Error(err))
		helpers.Error(w, http.StatusUnauthorized, "Недействительный refresh token")
		return
	}

	accessTTL, _ := time.ParseDuration(cfg.AccessTokenTTL)
	accessToken, err := utils.GenerateToken(cfg.JWTSecret, userID, role, accessTTL, "access")
	if err != nil {
		logger.Log.Error("Ошибка генерации токена", zap.Error(err))
		helpers.Error(w, http.StatusInternalServerError, "Ошибка генерации токена")
		return
	}

	helpers.JSON(w, http.StatusOK, map[string]string{"access_token": accessToken})
}

// Logout godoc
// @Summary Выход (удаление refresh токена)
// @Tags auth
// @Security ApiKeyAuth
// @Success 200 {string} string "Выход выполнен"
// @Failure 401 {string} string "Невалидный токен"
// @Router /api/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		logger.Log.Warn("Отсутствует refresh token в Logout")
		helpers.Error(w, http.StatusUnauthorized, "Отсутствует refresh token")
		return
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	cfg, _ := config.LoadConfig()
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		helpers.Error(w, http.StatusUnauthorized, "Невалидный токен")
		return
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		helpers.Error(w, http.StatusUnauthorized, "Неверный payload токена")
		return
	}

	if err := h.authService.Logout(r.Context(), userID, tokenString); err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка выхода")
		return
	}

	helpers.JSON(w, http.StatusOK, "Выход выполнен")
}

// Profile godoc
// @Summary Профиль текущего пользователя с остатками квот
// @Tags profile
// @Security ApiKeyAuth
// @Success 200 {object} models.UserProfileResponse
// @Failure 401 {string} string "Нет доступа"
// @Router /api/profile [get]
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(middleware.ContextUserID).(string)

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		helpers.Error(w, http.StatusNotFound, "Пользователь не найден")
		return
	}

	usage, err := h.usageService.GetAllRemaining(r.Context(), userID)
	if err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка чтения квот")
		return
	}

	helpers.JSON(w, http.StatusOK, models.UserProfileResponse{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		Role:             user.Role,
		IsVip:            user.IsVip,
		MembershipType:   user.MembershipType,
		MembershipExpiry: user.MembershipExpiry,
		CreatedAt:        user.CreatedAt,
		Usage:            usage,
	})
}

// GetUsers godoc
// @Summary Список пользователей (админ)
// @Tags admin
// @Security ApiKeyAuth
// @Param page query int false "Страница"
// @Param page_size query int false "Размер страницы"
// @Success 200 {array} models.User
// @Failure 403 {string} string "Доступ запрещён"
// @Router /api/admin/users [get]
func (h *AuthHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	users, total, err := h.authService.GetUsersPaginated(r.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка получения пользователей")
		return
	}

	helpers.JSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"total": total,
		"page":  page,
	})
}

// GetUserByID godoc
// @Summary Пользователь по ID (админ)
// @Tags admin
// @Security ApiKeyAuth
// @Param id path string true "ID пользователя"
// @Success 200 {object} models.User
// @Failure 404 {string} string "Пользователь не найден"
// @Router /api/admin/users/{id} [get]
func (h *AuthHandler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	user, err := h.authService.GetUserByID(r.Context(), id)
	if err != nil {
		helpers.Error(w, http.StatusNotFound, "Пользователь не найден")
		return
	}
	helpers.JSON(w, http.StatusOK, user)
}

// UpdateUser godoc
// @Summary Обновление пользователя (админ)
// @Tags admin
// @Security ApiKeyAuth
// @Param id path string true "ID пользователя"
// @Param input body models.UpdateUserRequest true "Изменяемые поля"
// @Success 200 {string} string "Пользователь обновлён"
// @Router /api/admin/users/{id} [patch]
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var input models.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	if err := h.authService.UpdateUser(r.Context(), id, &input); err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Ошибка обновления пользователя")
		return
	}
	helpers.JSON(w, http.StatusOK, "Пользователь обновлён")
}

// DeleteUser godoc
// @Summary Удаление пользователя со всем пространством ключей (админ)
// @Tags admin
// @Security ApiKeyAuth
// @Param id path string true "ID пользователя"
// @Success 200 {string} string "Пользователь удалён"
// @Failure 404 {string} string "Пользователь не найден"
// @Router /api/admin/users/{id} [delete]
func (h *AuthHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.authService.DeleteUserByID(r.Context(), id); err != nil {
		helpers.Error(w, http.StatusNotFound, err.Error())
		return
	}
	helpers.JSON(w, http.StatusOK, "Пользователь удалён")
}
