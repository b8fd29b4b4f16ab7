package api

import (
	"errors"
	"net/http"

	"cvlex/internal/prompts"
	"cvlex/internal/providers"
	"cvlex/internal/uploads"
	"cvlex/internal/util"
)

type errorKind int

const (
	kindInternal errorKind = iota
	kindInvalidInput
	kindResourceUnavailable
	kindProvider
)

func (k errorKind) String() string {
	switch k {
	case kindInvalidInput:
		return "invalid_input"
	case kindResourceUnavailable:
		return "resource_unavailable"
	case kindProvider:
		return "provider_error"
	default:
		return "internal_error"
	}
}

// requestError carries a user-facing message alongside the cause, which is
// only ever logged.
type requestError struct {
	kind    errorKind
	message string
	err     error
}

func (e *requestError) Error() string {
	if e.err == nil {
		return e.message
	}
	return e.message + ": " + e.err.Error()
}

func (e *requestError) Unwrap() error { return e.err }

func invalidInput(message string, err error) error {
	return &requestError{kind: kindInvalidInput, message: message, err: err}
}

const (
	msgNoFile            = "Aucun fichier téléchargé."
	msgUnreadable        = "Le fichier PDF est vide ou illisible."
	msgUnreadableMission = "Le fichier de mission est vide ou illisible."
	msgUnsupported       = "Format de fichier non pris en charge."
	msgTooLarge          = "Le fichier envoyé est trop volumineux."
	msgBadMultipart      = "Requête multipart invalide."
	msgBadQuestion       = "La question doit être une chaîne de caractères valide."
	msgBadPrompt         = "Le prompt doit être une chaîne de caractères valide."
	msgBadJSON           = "Corps JSON invalide."
	msgNoKnowledge       = "Les données juridiques ne sont pas disponibles."
	msgAnalysisFailed    = "Erreur lors de l'analyse du fichier."
	msgAnswerFailed      = "Erreur lors de la génération de la réponse."
	msgMediaFailed       = "Erreur lors de la génération du média."
	msgInternal          = "Erreur interne du serveur."
)

type apiError struct {
	Status  int
	Kind    errorKind
	Message string
}

// toAPIError maps a handler error to its status and a message safe to show
// to clients. Provider and internal detail never reaches the message.
func toAPIError(err error) apiError {
	var re *requestError
	if errors.As(err, &re) {
		switch re.kind {
		case kindInvalidInput:
			return apiError{Status: http.StatusBadRequest, Kind: re.kind, Message: re.message}
		case kindResourceUnavailable:
			return apiError{Status: http.StatusInternalServerError, Kind: re.kind, Message: re.message}
		}
	}

	var maxErr *http.MaxBytesError
	var pe *providers.ProviderError
	switch {
	case errors.As(err, &maxErr):
		return apiError{Status: http.StatusBadRequest, Kind: kindInvalidInput, Message: msgTooLarge}
	case errors.Is(err, uploads.ErrMissingFile):
		return apiError{Status: http.StatusBadRequest, Kind: kindInvalidInput, Message: msgNoFile}
	case errors.Is(err, util.ErrUnsupportedType):
		return apiError{Status: http.StatusBadRequest, Kind: kindInvalidInput, Message: msgUnsupported}
	case errors.Is(err, util.ErrNoExtractableText):
		return apiError{Status: http.StatusBadRequest, Kind: kindInvalidInput, Message: msgUnreadable}
	case errors.Is(err, util.ErrKnowledgeUnavailable):
		return apiError{Status: http.StatusInternalServerError, Kind: kindResourceUnavailable, Message: msgNoKnowledge}
	case errors.As(err, &pe):
		return apiError{Status: http.StatusInternalServerError, Kind: kindProvider, Message: providerMessage(pe.Op)}
	default:
		return apiError{Status: http.StatusInternalServerError, Kind: kindInternal, Message: msgInternal}
	}
}

func providerMessage(op string) string {
	switch op {
	case prompts.OpCVAnalysis, prompts.OpCVAnalysisMission:
		return msgAnalysisFailed
	case prompts.OpSpeech, prompts.OpImage:
		return msgMediaFailed
	default:
		return msgAnswerFailed
	}
}
