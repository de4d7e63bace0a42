package server

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	AllowOriginHeader       = "Access-Control-Allow-Origin"
	AllowHeadersHeader      = "Access-Control-Allow-Headers"
	AllowMethodsHeader      = "Access-Control-Allow-Methods"
	AllControlRequestHeader = "Access-Control-Request-Method"
	AllowCredentialsHeader  = "Access-Control-Allow-Credentials"
	ExposeHeadersHeader     = "Access-Control-Expose-Headers"
	MaxAgeHeader            = "Access-Control-Max-Age"
	Separator               = ", "

	defaultAllowHeaders  = "Content-Type, Authorization, Last-Event-ID"
	defaultExposeHeaders = "Content-Type"
)

// Cors controls the cross origin headers of the relay routes
type Cors struct {
	AllowCredentials *bool    `yaml:"AllowCredentials,omitempty"`
	AllowHeaders     []string `yaml:"AllowHeaders,omitempty"`
	AllowMethods     []string `yaml:"AllowMethods,omitempty"`
	AllowOrigins     []string `yaml:"AllowOrigins,omitempty"`
	ExposeHeaders    []string `yaml:"ExposeHeaders,omitempty"`
	MaxAge           *int64   `yaml:"MaxAge,omitempty"`
}

// AllowsOrigin returns true when origin is listed or any origin is allowed
func (c *Cors) AllowsOrigin(origin string) bool {
	for _, candidate := range c.AllowOrigins {
		if candidate == "*" || candidate == origin {
			return true
		}
	}
	return false
}

// Middleware sets CORS headers and answers preflight requests
func (c *Cors) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.setHeaders(w.Header(), r)
		if r.Method == http.MethodOptions && r.Header.Get(AllControlRequestHeader) != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Cors) setHeaders(header http.Header, request *http.Request) {
	origin := request.Header.Get("Origin")
	switch {
	case origin == "" && c.AllowsOrigin("*"):
		header.Set(AllowOriginHeader, "*")
	case origin != "" && c.AllowsOrigin(origin):
		header.Set(AllowOriginHeader, origin)
		header.Add("Vary", "Origin")
	}
	if len(c.AllowMethods) > 0 {
		methods := strings.Join(c.AllowMethods, Separator)
		if methods == "*" {
			methods = request.Method
			if requested := request.Header.Get(AllControlRequestHeader); requested != "" {
				methods = requested
			}
		}
		header.Set(AllowMethodsHeader, methods)
	}
	if len(c.AllowHeaders) > 0 {
		headers := strings.Join(c.AllowHeaders, Separator)
		if headers == "*" {
			headers = defaultAllowHeaders
		}
		header.Set(AllowHeadersHeader, headers)
	}
	if c.AllowCredentials != nil {
		header.Set(AllowCredentialsHeader, strconv.FormatBool(*c.AllowCredentials))
	}
	if c.MaxAge != nil {
		header.Set(MaxAgeHeader, strconv.FormatInt(*c.MaxAge, 10))
	}
	if len(c.ExposeHeaders) > 0 {
		headers := strings.Join(c.ExposeHeaders, Separator)
		if headers == "*" {
			headers = defaultExposeHeaders
		}
		header.Set(ExposeHeadersHeader, headers)
	}
}

// DefaultCors allows every origin
func DefaultCors() *Cors {
	return &Cors{
		AllowCredentials: &[]bool{true}[0],
		AllowHeaders:     []string{"*"},
		AllowMethods:     []string{"*"},
		AllowOrigins:     []string{"*"},
		ExposeHeaders:    []string{"*"},
	}
}
