package criteria

import (
	"fmt"
	"strings"
	"unicode"
)

// Parse reads the textual rule form produced by Rule.String:
//
//	All{Mode Is Media, Any{Route Includes Speaker, Route Includes Headset}}
//
// An empty or blank string is the always-true rule All{}.
func Parse(text string) (Rule, error) {
	p := &ruleParser{toks: tokenize(text)}
	if len(p.toks) == 0 {
		return &CompoundRule{Type: All}, nil
	}
	r, err := p.rule()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("%w: unexpected %q after rule", ErrBadRule, p.toks[p.pos])
	}
	return r, nil
}

type ruleParser struct {
	toks []string
	pos  int
}

func (p *ruleParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *ruleParser) next() (string, error) {
	if p.pos >= len(p.toks) {
		return "", fmt.Errorf("%w: unexpected end of rule", ErrBadRule)
	}
	t := p.toks[p.pos]
	p.pos++
	return t, nil
}

func (p *ruleParser) expect(tok string) error {
	t, err := p.next()
	if err != nil {
		return err
	}
	if t != tok {
		return fmt.Errorf("%w: expected %q, got %q", ErrBadRule, tok, t)
	}
	return nil
}

func (p *ruleParser) rule() (Rule, error) {
	head, err := p.next()
	if err != nil {
		return nil, err
	}
	if isPunct(head) {
		return nil, fmt.Errorf("%w: unexpected %q", ErrBadRule, head)
	}
	if p.peek() == "{" {
		var typ CompoundType
		switch head {
		case "All":
			typ = All
		case "Any":
			typ = Any
		default:
			return nil, fmt.Errorf("%w: compound type must be All or Any, got %q", ErrBadRule, head)
		}
		p.pos++
		r := &CompoundRule{Type: typ}
		if p.peek() == "}" {
			p.pos++
			return r, nil
		}
		for {
			sub, err := p.rule()
			if err != nil {
				return nil, err
			}
			r.Rules = append(r.Rules, sub)
			t, err := p.next()
			if err != nil {
				return nil, err
			}
			if t == "}" {
				return r, nil
			}
			if t != "," {
				return nil, fmt.Errorf("%w: expected ',' or '}', got %q", ErrBadRule, t)
			}
		}
	}
	methodTok, err := p.next()
	if err != nil {
		return nil, err
	}
	method, err := ParseMatchMethod(methodTok)
	if err != nil {
		return nil, err
	}
	value, err := p.next()
	if err != nil {
		return nil, err
	}
	if isPunct(value) {
		return nil, fmt.Errorf("%w: missing value after %s %s", ErrBadRule, head, methodTok)
	}
	return &CriterionRule{Criterion: head, MatchesWhen: method, Value: value}, nil
}

func isPunct(t string) bool {
	return t == "{" || t == "}" || t == ","
}

func tokenize(text string) []string {
	var (
		toks []string
		cur  strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r == '{' || r == '}' || r == ',':
			flush()
			toks = append(toks, string(r))
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}
