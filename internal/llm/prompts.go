// ABOUTME: Prompt templates for extraction and card synthesis
// ABOUTME: Extraction asks for a strict {entities, relations} JSON object
package llm

import (
	"fmt"
	"strings"

	"github.com/harper/muleta/internal/models"
)

const extractionSystemPrompt = `Você constrói um grafo de conhecimento a partir de um texto para ajudar alguém a estudá-lo.
Use somente informações presentes no texto. Escreva descrições em português do Brasil, com até 25 palavras.
Use nomes canônicos curtos e consolide duplicatas em um único nome.
Tipos de entidade: conceito, pessoa, lugar, organizacao, teoria, evento, obra, tecnologia, metodo.
Tipos de relação: tipo_de, parte_de, exemplo_de, causa_de, efeito_de, apoia, contradiz, relacionado_a.
Na dúvida sobre a relação, use "relacionado_a". Sem nada relevante, devolva listas vazias.
Responda APENAS com JSON válido no formato:
{"entities":[{"name":"...","type":"...","description":"..."}],
 "relations":[{"from":"...","to":"...","type":"...","evidence":"citação curta ou justificativa"}]}`

func buildExtractionPrompt(text string) string {
	return fmt.Sprintf("TEXTO:\n%s", text)
}

const cardSystemPrompt = `Você escreve cartões de revisão espaçada em português do Brasil.
Use somente o contexto fornecido. A pergunta deve ser respondível sem ver o cartão.
Responda APENAS com JSON: {"question":"...","answer":"..."}`

var cardInstructions = map[models.CardType]string{
	models.CardDefinition:  "Peça a definição da entidade.",
	models.CardRelation:    "Pergunte como a entidade se relaciona com uma das entidades vizinhas.",
	models.CardApplication: "Peça um exemplo de aplicação prática da entidade.",
}

var socraticInstructions = map[models.SocraticSubtype]string{
	models.SocraticWhyImportant: "Pergunte por que a entidade é importante.",
	models.SocraticEvidence:     "Pergunte que evidências sustentam a entidade.",
	models.SocraticImplications: "Pergunte quais são as implicações da entidade.",
	models.SocraticObjections:   "Pergunte quais objeções podem ser feitas à entidade.",
	models.SocraticRelations:    "Pergunte como a entidade se conecta a outras ideias.",
}

func buildCardPrompt(p models.CardPrompt) string {
	instruction := cardInstructions[p.CardType]
	if p.CardType == models.CardSocratic {
		instruction = socraticInstructions[p.SocraticSubtype]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Entidade: %s (%s)\n", p.EntityName, p.EntityType)
	fmt.Fprintf(&b, "Tipo de cartão: %s\n", p.CardType)
	fmt.Fprintf(&b, "Instrução: %s\n\n", instruction)
	fmt.Fprintf(&b, "Contexto:\n%s", p.Context)
	return b.String()
}
