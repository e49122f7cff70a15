package drafting

import (
	"fmt"
	"strings"
)

const newContractTemplate = `You draft contracts as an experienced legal writer. Write a complete contract that satisfies the request below.

REQUEST: %q
CONTRACT TYPE: %s

PARTIES:
%s

NAMING:
- Refer to every party by the name listed above. Never use placeholders such as "Party A" or "Party 1".

LAYOUT:
- Semantic HTML only: h1 for the title, h2 for sections, h3 for subsections.
- Use style="font-family: Arial, sans-serif" and comfortable spacing.

SECTIONS, IN ORDER:
1. Title (centered, bold)
2. Parties, using the names above
3. Recitals
4. Numbered terms and conditions
5. Payment terms where relevant
6. Term and termination
7. Governing law and jurisdiction
8. Signature blocks for each listed party

CONTENT:
- Formal legal language with clearly defined terms.
- Clauses specific to the contract type plus standard boilerplate (force majeure, severability, entire agreement).
- Bracketed placeholders for unknown details, e.g. [Date] or [Amount].

Output the contract body as HTML only. No markdown fences, no commentary, no <html>, <head> or <body> tags.`

const editTemplate = `You revise contracts as an experienced legal editor. Apply the requested change to the contract below.

CURRENT CONTRACT:
%s

CHANGE REQUESTED: %q

RULES:
- Touch only the sections the change affects and keep the rest verbatim.
- Keep the existing HTML structure, styling and Arial font.
- Keep numbering and cross-references consistent; renumber when clauses are added or removed.
- Place new clauses in the section they belong to.

Output the full revised contract body as HTML only. No markdown fences, no commentary, no <html>, <head> or <body> tags.`

const summaryTemplate = `Write one plain-English paragraph summarizing the contract below. Cover the parties, purpose, main obligations, duration and any notable clauses. No headings and no bullet points.

CONTRACT (HTML):
%s

Reply with the paragraph only.`

func newContractInstruction(prompt, contractType string, parties []string) string {
	lines := make([]string, len(parties))
	for i, p := range parties {
		lines[i] = "- " + p
	}
	return fmt.Sprintf(newContractTemplate, prompt, contractType, strings.Join(lines, "\n"))
}

func editInstruction(existing, prompt string) string {
	return fmt.Sprintf(editTemplate, existing, prompt)
}

func summaryInstruction(contractHTML string) string {
	return fmt.Sprintf(summaryTemplate, contractHTML)
}
