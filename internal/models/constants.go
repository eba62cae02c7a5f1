package models

const (
	ThinkTag         = `(?s)<think>.*?</think>`
	ContextSeparator = "\n\n"
	PreviewLength    = 100
)

// Prompt templates are keyed by two-letter language code. Lookups for a code
// without an entry fall back to the "en" template.
var (
	// AnswerPromptTemplates take, in order: fragments, conversation history, question.
	AnswerPromptTemplates = map[string]string{
		"en": `You are an assistant that answers questions about a document the user uploaded.

Rules:
- Answer using ONLY the document fragments and the conversation history below.
- If the fragments do not contain the answer, say clearly that the document does not provide this information. Do not invent facts.
- Cite the fragments you rely on inline, for example [Fragment 3].
- Format any code, commands or algorithms in fenced code blocks.
- When the question refers to something said earlier, use the conversation history.

Document fragments:
%s

Conversation history (newest first):
%s

Question: %s

Answer:`,
		"ro": `Ești un asistent care răspunde la întrebări despre un document încărcat de utilizator.

Reguli:
- Răspunde folosind DOAR fragmentele de document și istoricul conversației de mai jos.
- Dacă fragmentele nu conțin răspunsul, spune clar că documentul nu oferă această informație. Nu inventa fapte.
- Citează fragmentele pe care te bazezi direct în text, de exemplu [Fragment 3].
- Formatează orice cod, comenzi sau algoritmi în blocuri de cod.
- Când întrebarea se referă la ceva spus anterior, folosește istoricul conversației.

Fragmente din document:
%s

Istoricul conversației (cele mai recente primele):
%s

Întrebare: %s

Răspuns:`,
	}

	// LeafSummaryTemplates take, in order: document title line, section text.
	LeafSummaryTemplates = map[string]string{
		"en": `Summarize the following section of a document%s.

Requirements:
- Identify the key topics and main ideas.
- Preserve technical terms, names, numbers and measurements exactly.
- Mirror the logical structure of the input (lists stay lists, steps stay ordered).
- If the text contains code or an algorithm, state what it does.
- Keep the summary proportional to the length of the input.

Text:
%s

Summary:`,
		"ro": `Rezumă următoarea secțiune dintr-un document%s.

Cerințe:
- Identifică temele cheie și ideile principale.
- Păstrează exact termenii tehnici, numele, numerele și valorile.
- Respectă structura logică a textului (listele rămân liste, pașii rămân ordonați).
- Dacă textul conține cod sau un algoritm, menționează ce face.
- Lungimea rezumatului trebuie să fie proporțională cu lungimea textului.

Text:
%s

Rezumat:`,
	}

	// FoldSummaryTemplates take, in order: document title line, labeled section summaries.
	FoldSummaryTemplates = map[string]string{
		"en": `Below are summaries of consecutive sections of one document%s. Combine them into a single final summary.

Format:
1. Start with a 1-2 sentence overview of the whole document.
2. Organize the content under headings, one per main topic, with bullet points.
3. Highlight key terms and conclusions in bold.
4. End with one sentence on the significance of the document.
The final summary must not exceed 500 words.

Section summaries:
%s

Final summary:`,
		"ro": `Mai jos sunt rezumatele unor secțiuni consecutive dintr-un document%s. Combină-le într-un singur rezumat final.

Format:
1. Începe cu o prezentare generală a documentului în 1-2 propoziții.
2. Organizează conținutul pe titluri, câte unul pentru fiecare temă principală, cu liste cu puncte.
3. Evidențiază termenii cheie și concluziile cu bold.
4. Încheie cu o propoziție despre importanța documentului.
Rezumatul final nu trebuie să depășească 500 de cuvinte.

Rezumatele secțiunilor:
%s

Rezumat final:`,
	}

	// TitleLines fill the first verb of the summary templates when a title is known.
	TitleLines = map[string]string{
		"en": ` titled "%s"`,
		"ro": ` intitulat "%s"`,
	}

	// SectionLabels label each leaf summary in the fold prompt.
	SectionLabels = map[string]string{
		"en": "Section %d",
		"ro": "Secțiunea %d",
	}

	// EmptyHistory stands in for a conversation with no prior turns.
	EmptyHistory = map[string]string{
		"en": "(no previous messages)",
		"ro": "(niciun mesaj anterior)",
	}
)

// Template returns the entry for lang, or the English entry.
func Template(templates map[string]string, lang string) string {
	if t, ok := templates[lang]; ok {
		return t
	}
	return templates["en"]
}
