package grader

import (
	"fmt"
	"strings"

	"github.com/Protocol-Lattice/go-grader/src/models"
)

const (
	gradeSystem = "You are an experienced instructor grading a student submission. " +
		"Follow the grading instructions exactly. Report every score as `Label: points/max`."
	rewriteSystem = "You rewrite text following the given style instructions. " +
		"Return only the rewritten text as plain prose."
	exemplarSystem = "You write exemplar answers that fully meet the assignment and the instructions. " +
		"Return only the exemplar text as plain prose."
	synthesisSystem = "You combine partial evaluations of one submission into a single evaluation."
)

func systemPrompt(mode Mode) string {
	switch mode {
	case ModeRewrite:
		return rewriteSystem
	case ModeExemplar:
		return exemplarSystem
	default:
		return gradeSystem
	}
}

func section(label, body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return label + ":\n" + body
}

// chunked reports whether pos describes one piece of a larger document.
func (p Position) chunked() bool { return p.Total > 1 || p.Parts > 1 }

func (p Position) label() string {
	s := fmt.Sprintf("part %d of %d", p.Index+1, p.Total)
	if p.Parts > 1 {
		s += fmt.Sprintf(" (section %d of %d)", p.Part+1, p.Parts)
	}
	return s
}

// buildRequest frames text for its mode and position.
func buildRequest(job Job, text string, pos Position) models.Request {
	req := models.Request{System: systemPrompt(job.Mode), Temperature: job.Temperature}
	switch job.Mode {
	case ModeGrade:
		req.Parts = []string{
			section("Assignment", job.Assignment),
			section("Grading instructions", job.Instructions),
		}
		if pos.chunked() {
			req.Parts = append(req.Parts,
				fmt.Sprintf("This is %s of the submission. Evaluate only this part. "+
					"Do not give a final overall grade, since the rest of the submission is graded separately. "+
					"Score each criterion you can assess from this part.", pos.label()),
				section("Submission, "+pos.label(), text))
		} else {
			req.Parts = append(req.Parts, section("Submission", text))
		}
	default:
		verb := "Rewrite"
		if job.Mode == ModeExemplar {
			verb = "Write the exemplar version of"
		}
		req.Parts = []string{
			section("Assignment", job.Assignment),
			section("Instructions", job.Instructions),
		}
		if pos.chunked() {
			framing := fmt.Sprintf("This is %s of a longer text. %s only this part. "+
				"Continue seamlessly from the previous part: do not add an introduction, a title or a conclusion "+
				"unless this part contains one, and keep the same voice and style throughout.", pos.label(), verb)
			req.Parts = append(req.Parts, framing,
				section("End of the previous rewritten part", pos.Previous),
				section("Text, "+pos.label(), text))
		} else {
			req.Parts = append(req.Parts, fmt.Sprintf("%s the following text.", verb), section("Text", text))
		}
	}
	return req
}

// synthesisRequest asks for one overall evaluation built from partial ones.
func synthesisRequest(job Job, partials []string) models.Request {
	parts := []string{
		section("Assignment", job.Assignment),
		section("Grading instructions", job.Instructions),
		fmt.Sprintf("The submission was graded in %d parts. Combine the partial evaluations below into one "+
			"evaluation of the whole submission with a single final grade written as `Overall Grade: points/max`.", len(partials)),
	}
	for i, p := range partials {
		parts = append(parts, section(fmt.Sprintf("Evaluation of part %d of %d", i+1, len(partials)), p))
	}
	return models.Request{System: synthesisSystem, Parts: parts, Temperature: job.Temperature}
}
