// Package prompts assembles the system and user instructions sent to the
// completion gateway. The heading conventions (**Titre**, #Livre II#) are a
// contract with the front-end renderer.
package prompts

import (
	"strings"

	"cvlex/internal/providers"
	"cvlex/internal/util"
)

const (
	OpCVAnalysis        = "cv_analysis"
	OpCVAnalysisMission = "cv_analysis_mission"
	OpLegalGuidance     = "legal_guidance"
	OpPromptRefinement  = "prompt_refinement"
	OpSpeech            = "speech"
	OpImage             = "image"
)

// Unspecified replaces an absent job position.
const Unspecified = "Non spécifié"

// Section headings the CV analysis must produce.
var CVSections = []string{
	"Compétences Analysées",
	"Résumé du profil",
	"Adéquation au poste demandé",
	"Compétences manquantes",
}

const maxMediaPromptRunes = 4000

const cvSystem = "Vous êtes un assistant spécialisé en analyse de CV. " +
	"Chaque titre sera entouré d'une double astérisque comme ceci : **Titre**"

const legalSystem = `les réponses n'ont pas pour objectif de répondre a la question mais de guider l'utilisateur dans les chapitres et sections du code pénal. 
Vous êtes un assistant juridique. 
Vos réponses serons organisé en plusieur titre, chaque titre doit etre entouré de deux astérix **Titre**.
Il est donc néccéssaire de seulement présciser dans quel livre, chapitre et section il est possible de trouver la réponse a la question, 
toujours préciser de quel livre et chapitre viens la sections mentionné. et affiché le nom des livres, chapitre et section entouré par le charactère # et jamais entre **
exemple : **Différence entre meutre et homicide** #Livre II# #Chapitre 3# #section 1#
il est important de faire une légère explication.
utilise les information suivantes pour guider l'utilisateur :

`

const refineSystem = "Vous êtes un assistant spécialisé dans la rédaction de prompts pour des modèles de langage. " +
	"Reformulez la demande de l'utilisateur en un prompt clair, précis et directement utilisable. " +
	"Chaque titre sera entouré d'une double astérisque comme ceci : **Titre**"

func CVAnalysis(cvText, jobPosition string) []providers.Message {
	return cvMessages(cvText, position(jobPosition))
}

// CVAnalysisWithMission appends the mission document to the job position so
// the model judges the fit against the actual assignment.
func CVAnalysisWithMission(cvText, jobPosition, missionText string) []providers.Message {
	role := position(jobPosition)
	if m := strings.TrimSpace(missionText); m != "" {
		role += "\n\nDescription de la mission proposée :\n" + m
	}
	return cvMessages(cvText, role)
}

func cvMessages(cvText, role string) []providers.Message {
	var b strings.Builder
	b.WriteString("Voici le contenu du CV :\n")
	b.WriteString(cvText)
	b.WriteString("\n\nPoste recherché par l'employeur : ")
	b.WriteString(role)
	b.WriteString("\n\nVeuillez analyser :\n")
	b.WriteString(`1. Listez les compétences mentionnées. Et mettre en titre "` + CVSections[0] + `"` + "\n")
	b.WriteString(`2. Fournissez un résumé du profil. Et mettre en titre "` + CVSections[1] + `"` + "\n")
	b.WriteString(`3. Indiquez si le candidat correspond au poste recherché. Et mettre en titre "` + CVSections[2] + `"` + "\n")
	b.WriteString("4. Si nécessaire, indiquez quelles compétences supplémentaires sont nécessaires pour avoir un profil adéquat au poste recherché en faisant une liste.\n")
	b.WriteString(`   Et mettre en titre "` + CVSections[3] + `"`)
	return []providers.Message{
		{Role: providers.RoleSystem, Content: cvSystem},
		{Role: providers.RoleUser, Content: b.String()},
	}
}

// LegalGuidance embeds the whole knowledge text in the system message. The
// question is flattened to a single line.
func LegalGuidance(question, knowledge string) []providers.Message {
	return []providers.Message{
		{Role: providers.RoleSystem, Content: legalSystem + knowledge + "\n\n"},
		{Role: providers.RoleUser, Content: util.SingleLine(question)},
	}
}

func PromptRefinement(input string) []providers.Message {
	return []providers.Message{
		{Role: providers.RoleSystem, Content: refineSystem},
		{Role: providers.RoleUser, Content: "Voici la demande à transformer en prompt :\n" + strings.TrimSpace(input)},
	}
}

// MediaPrompt bounds free text forwarded to speech or image synthesis.
func MediaPrompt(input string) string {
	return util.Truncate(strings.TrimSpace(input), maxMediaPromptRunes)
}

func position(jobPosition string) string {
	if p := strings.TrimSpace(jobPosition); p != "" {
		return p
	}
	return Unspecified
}
