package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/ginext"

	"tourbook/internal/model"
)

// stubService answers every route with 200 and the handler name.
type stubService struct{}

func reply(name string) func(*ginext.Context) {
	return func(c *ginext.Context) { c.JSON(http.StatusOK, ginext.H{"handler": name}) }
}

func (stubService) Login(c *ginext.Context) { reply("Login")(c) }
func (stubService) Health(c *ginext.Context) { reply("Health")(c) }
func (stubService) ListEvents(c *ginext.Context) { reply("ListEvents")(c) }
func (stubService) GetEvent(c *ginext.Context) { reply("GetEvent")(c) }
func (stubService) CreateEvent(c *ginext.Context) { reply("CreateEvent")(c) }
func (stubService) UpdateEvent(c *ginext.Context) { reply("UpdateEvent")(c) }
func (stubService) DeleteEvent(c *ginext.Context) { reply("DeleteEvent")(c) }
func (stubService) UploadEventCover(c *ginext.Context) { reply("UploadEventCover")(c) }
func (stubService) ListPhotos(c *ginext.Context) { reply("ListPhotos")(c) }
func (stubService) UploadPhoto(c *ginext.Context) { reply("UploadPhoto")(c) }
func (stubService) DeletePhoto(c *ginext.Context) { reply("DeletePhoto")(c) }
func (stubService) VerifyCard(c *ginext.Context) { reply("VerifyCard")(c) }
func (stubService) ChargeCard(c *ginext.Context) { reply("ChargeCard")(c) }
func (stubService) GeneratePaymentLink(c *ginext.Context) { reply("GeneratePaymentLink")(c) }
func (stubService) CreateRegistration(c *ginext.Context) { reply("CreateRegistration")(c) }
func (stubService) Checkout(c *ginext.Context) { reply("Checkout")(c) }
func (stubService) GetRegistration(c *ginext.Context) { reply("GetRegistration")(c) }

type tokenAuth string

func (a tokenAuth) Authorize(header string) error {
	if header != "Bearer "+string(a) {
		return model.ErrUnauthorized
	}
	return nil
}

func newTestRouter() *ginext.Engine {
	log := zerolog.Nop()
	return NewRouters(&Routers{
		Service: stubService{},
		Auth:    tokenAuth("secret"),
		Log:     &log,
	})
}

func TestRoutes_AdminGate(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		name   string
		method string
		path   string
		admin  bool
	}{
		{"registration read", http.MethodGet, "/api/registrations/1", true},
		{"event create", http.MethodPost, "/api/events", true},
		{"event delete", http.MethodDelete, "/api/events/1", true},
		{"photo upload", http.MethodPost, "/api/photos", true},
		{"payment link", http.MethodPost, "/api/payment/link", true},
		{"event list", http.MethodGet, "/api/events", false},
		{"checkout", http.MethodPost, "/api/registrations/checkout", false},
		{"paid registration", http.MethodPost, "/api/registrations", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			if tt.admin {
				assert.Equal(t, http.StatusUnauthorized, w.Code)
				assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
			} else {
				assert.Equal(t, http.StatusOK, w.Code)
			}

			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Authorization", "Bearer secret")
			w = httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestRoutes_RegistrationReadReachesHandlerWithAuth(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/registrations/42", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"handler":"GetRegistration"`)
}
