// Package i18n resolves user-facing API messages against the locale a client
// negotiates through the Accept-Language header. English is the documented
// fallback for absent, unparseable, or untranslated locales.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

var supported = []language.Tag{
	language.English, // fallback, must stay first
	language.Spanish,
	language.German,
}

var matcher = language.NewMatcher(supported)

// Message keys shared between the gateway and the API handlers.
const (
	KeyBadRequest       = "bad_request"
	KeyUnauthorized     = "unauthorized"
	KeyForbidden        = "forbidden"
	KeyNotFound         = "not_found"
	KeyMethodNotAllowed = "method_not_allowed"
	KeyConflict         = "conflict"
	KeyValidationFailed = "validation_failed"
	KeyTooManyRequests  = "too_many_requests"
	KeyInternalError    = "internal_error"
	KeyInvalidToken     = "invalid_token"
)

var catalog = map[string]map[language.Tag]string{
	KeyBadRequest: {
		language.English: "Malformed request",
		language.Spanish: "Solicitud mal formada",
		language.German:  "Fehlerhafte Anfrage",
	},
	KeyUnauthorized: {
		language.English: "Authentication required",
		language.Spanish: "Autenticación requerida",
		language.German:  "Authentifizierung erforderlich",
	},
	KeyForbidden: {
		language.English: "Insufficient permissions",
		language.Spanish: "Permisos insuficientes",
		language.German:  "Unzureichende Berechtigungen",
	},
	KeyNotFound: {
		language.English: "Resource not found",
		language.Spanish: "Recurso no encontrado",
		language.German:  "Ressource nicht gefunden",
	},
	KeyMethodNotAllowed: {
		language.English: "Method not allowed",
		language.Spanish: "Método no permitido",
		language.German:  "Methode nicht erlaubt",
	},
	KeyConflict: {
		language.English: "Resource conflict",
		language.Spanish: "Conflicto de recursos",
		language.German:  "Ressourcenkonflikt",
	},
	KeyValidationFailed: {
		language.English: "Validation failed",
		language.Spanish: "La validación falló",
		language.German:  "Validierung fehlgeschlagen",
	},
	KeyTooManyRequests: {
		language.English: "Too many requests, retry later",
		language.Spanish: "Demasiadas solicitudes, reintente más tarde",
		language.German:  "Zu viele Anfragen, später erneut versuchen",
	},
	KeyInternalError: {
		language.English: "An unexpected error occurred",
		language.Spanish: "Ocurrió un error inesperado",
		language.German:  "Ein unerwarteter Fehler ist aufgetreten",
	},
	KeyInvalidToken: {
		language.English: "Invalid or expired credential",
		language.Spanish: "Credencial inválida o expirada",
		language.German:  "Ungültige oder abgelaufene Anmeldeinformatione",
	},
}

// Negotiate picks the best supported locale for an Accept-Language header
// value. Blank or unparseable input resolves to English.
func Negotiate(acceptLanguage string) language.Tag {
	trimmed := strings.TrimSpace(acceptLanguage)
	if trimmed == "" {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(trimmed)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, index, _ := matcher.Match(tags...)
	return supported[index]
}

// Message resolves a catalog key for the provided locale, falling back to the
// English translation and finally to the key itself for unknown keys.
func Message(locale language.Tag, key string) string {
	translations, ok := catalog[key]
	if !ok {
		return key
	}
	if message, ok := translations[locale]; ok {
		return message
	}
	return translations[language.English]
}

// MessageForStatus maps an HTTP status code to its default localized message.
func MessageForStatus(locale language.Tag, status int) string {
	return Message(locale, keyForStatus(status))
}

func keyForStatus(status int) string {
	switch status {
	case 400:
		return KeyBadRequest
	case 401:
		return KeyUnauthorized
	case 403:
		return KeyForbidden
	case 404:
		return KeyNotFound
	case 405:
		return KeyMethodNotAllowed
	case 409:
		return KeyConflict
	case 422:
		return KeyValidationFailed
	case 429:
		return KeyTooManyRequests
	default:
		return KeyInternalError
	}
}
