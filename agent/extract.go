package agent

import "strings"

// ExtractCommands splits finalized assistant text into user-facing text and
// bracketed out-of-band commands, in encounter order.
//
// This is a tokenizer, not a parser: a '<' starts capture, the next '>' ends
// it, and a '<' inside a capture is ordinary content. Command payloads are
// opaque to the core. An unterminated trailing command is emitted with a
// synthesized closing '>'.
func ExtractCommands(text string) (string, []string) {
	var cleaned strings.Builder
	var buf strings.Builder
	var commands []string
	inCommand := false

	for _, r := range text {
		if inCommand {
			buf.WriteRune(r)
			if r == '>' {
				commands = append(commands, buf.String())
				buf.Reset()
				inCommand = false
			}
			continue
		}
		if r == '<' {
			inCommand = true
			buf.WriteRune(r)
			continue
		}
		cleaned.WriteRune(r)
	}

	if inCommand {
		commands = append(commands, buf.String()+">")
	}

	return cleaned.String(), commands
}
