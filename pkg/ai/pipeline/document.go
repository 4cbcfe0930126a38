package pipeline

import (
	"context"
	"fmt"

	"nexus-ai-be/pkg/llm"
	"nexus-ai-be/pkg/rag/history"
)

// Document is an uploaded file whose text was extracted upstream.
type Document struct {
	Name string
	Type string
	Text string
}

const documentPromptTemplate = `You are analyzing a document. Here is the content:

Document Name: %s
Document Type: %s
Content Length: %d characters

User Question: %s

Document Content:
%s

Please analyze this document and answer the user's question based on the content above. Be specific and reference details from the document.`

// DocumentPrompt renders the analysis prompt for doc and question.
func DocumentPrompt(doc Document, question string) string {
	docType := doc.Type
	if docType == "" {
		docType = "PDF"
	}
	name := doc.Name
	if name == "" {
		name = "untitled"
	}
	return fmt.Sprintf(documentPromptTemplate, name, docType, len([]rune(doc.Text)), question, doc.Text)
}

// DocumentPipeline answers a question about an uploaded document.
type DocumentPipeline struct {
	historyCap int
}

func NewDocumentPipeline(historyCap int) *DocumentPipeline {
	return &DocumentPipeline{historyCap: historyCap}
}

func (p *DocumentPipeline) Execute(
	ctx context.Context,
	backend llm.Backend,
	system string,
	hist []llm.Message,
	doc Document,
	question string,
	opts ...llm.Option,
) <-chan llm.Chunk {
	current := llm.UserMessage(DocumentPrompt(doc, question))
	return backend.Stream(ctx, history.BuildWindow(system, hist, current, p.historyCap), opts...)
}
