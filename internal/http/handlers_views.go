package httpx

import (
	"io"
	"net/http"

	domainauth "github.com/target/inventory-console/internal/domain/auth"
	"github.com/target/inventory-console/internal/navigation"
)

const healthResponse = `{"status":"ok"}`

// healthHandler returns a simple 200 OK status for readiness/liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.WriteString(w, healthResponse)
}

// view describes a console page. The console has no templates; views answer with
// a JSON description that a front end renders.
type view struct {
	Name         string               `json:"view"`
	RequiredRole domainauth.Role      `json:"requiredRole,omitempty"`
	User         *domainauth.Identity `json:"user,omitempty"`
	ReturnURL    string               `json:"returnUrl,omitempty"`
}

// viewHandler renders a gated view with the identity the gate admitted.
func viewHandler(name string, role domainauth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFromContext(r.Context())
		WriteJSON(w, http.StatusOK, view{Name: name, RequiredRole: role, User: id})
	}
}

// rootHandler serves GET / and answers 404 for anything the mux did not match.
func rootHandler(ids IdentitySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != navigation.RootPath {
			http.NotFound(w, r)
			return
		}
		WriteJSON(w, http.StatusOK, view{Name: "home", User: ids.Current()})
	}
}

// loginViewHandler serves GET /login. A signed-in user is sent to the return URL.
func loginViewHandler(ids IdentitySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnURL := r.URL.Query().Get(navigation.ReturnURLParam)
		if ids.Current() != nil {
			http.Redirect(w, r, safeRedirectPath(returnURL), http.StatusSeeOther)
			return
		}
		WriteJSON(w, http.StatusOK, view{Name: "login", ReturnURL: safeRedirectPath(returnURL)})
	}
}
