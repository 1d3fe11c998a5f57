package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"todo-tracker/backend/internal/handlers"
	"todo-tracker/backend/internal/models"
	"todo-tracker/backend/internal/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAuthRouter(t *testing.T) (*gin.Engine, *gorm.DB, *services.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Todo{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	tokens := services.NewTokenService("test_secret", time.Hour)
	handler := handlers.NewAuthHandler(db, services.NewAuthService(bcrypt.MinCost), tokens, nil)

	router := gin.New()
	router.POST("/auth/register", handler.Register)
	router.POST("/auth/login", handler.Login)
	router.GET("/auth/verify", handler.Verify)

	return router, db, tokens
}

func postJSON(router *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegister(t *testing.T) {
	router, _, _ := setupAuthRouter(t)

	w := postJSON(router, "/auth/register", map[string]string{
		"email":    "alice@example.com",
		"password": "secret123",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response["email"] != "alice@example.com" {
		t.Errorf("Expected email in response, got %v", response["email"])
	}
	if _, leaked := response["password"]; leaked {
		t.Error("Expected password hash to be omitted from response")
	}
}

func TestRegister_Validation(t *testing.T) {
	router, _, _ := setupAuthRouter(t)

	tests := []struct {
		name    string
		payload map[string]string
	}{
		{"missing email", map[string]string{"password": "secret123"}},
		{"email without at sign", map[string]string{"email": "alice.example.com", "password": "secret123"}},
		{"short password", map[string]string{"email": "alice@example.com", "password": "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, "/auth/register", tt.payload)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	router, _, _ := setupAuthRouter(t)

	if w := postJSON(router, "/auth/register", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	}); w.Code != http.StatusCreated {
		t.Fatalf("Expected first registration to succeed, got %d", w.Code)
	}

	w := postJSON(router, "/auth/register", map[string]string{
		"email": "alice@example.com", "password": "other456",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestLogin(t *testing.T) {
	router, _, tokens := setupAuthRouter(t)

	postJSON(router, "/auth/register", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})

	w := postJSON(router, "/auth/login", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var response handlers.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Token == "" {
		t.Fatal("Expected a token in the login response")
	}
	if response.User.Email != "alice@example.com" {
		t.Errorf("Expected user email in response, got '%s'", response.User.Email)
	}

	userID, err := tokens.Verify(response.Token)
	if err != nil {
		t.Fatalf("Expected issued token to verify: %v", err)
	}
	if userID.String() != response.User.ID {
		t.Errorf("Expected token bound to user %s, got %s", response.User.ID, userID)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	router, db, _ := setupAuthRouter(t)

	postJSON(router, "/auth/register", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})

	w := postJSON(router, "/auth/login", map[string]string{
		"email": "alice@example.com", "password": "wrongpass",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("token")) {
		t.Error("Expected no token in failed login response")
	}

	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected credential store unchanged, got %d users", count)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	router, _, _ := setupAuthRouter(t)

	w := postJSON(router, "/auth/login", map[string]string{
		"email": "nobody@example.com", "password": "whatever",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestVerify(t *testing.T) {
	router, _, _ := setupAuthRouter(t)

	postJSON(router, "/auth/register", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})
	loginResp := postJSON(router, "/auth/login", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})
	var login handlers.LoginResponse
	json.Unmarshal(loginResp.Body.Bytes(), &login)

	req, _ := http.NewRequest("GET", "/auth/verify", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var response struct {
		User models.PublicUser `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.User.Email != "alice@example.com" {
		t.Errorf("Expected user email, got '%s'", response.User.Email)
	}
}

func TestVerify_NoToken(t *testing.T) {
	router, _, _ := setupAuthRouter(t)

	req, _ := http.NewRequest("GET", "/auth/verify", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestVerify_InvalidToken(t *testing.T) {
	router, _, _ := setupAuthRouter(t)

	req, _ := http.NewRequest("GET", "/auth/verify", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status %d, got %d", http.StatusForbidden, w.Code)
	}
}

func TestVerify_UserNoLongerExists(t *testing.T) {
	router, db, tokens := setupAuthRouter(t)

	postJSON(router, "/auth/register", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})

	var user models.User
	if err := db.Where("email = ?", "alice@example.com").First(&user).Error; err != nil {
		t.Fatalf("Failed to load user: %v", err)
	}
	token, err := tokens.Issue(user.ID)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	if err := db.Delete(&models.User{}, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("Failed to delete user: %v", err)
	}

	req, _ := http.NewRequest("GET", "/auth/verify", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}
