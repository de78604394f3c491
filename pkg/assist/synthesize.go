package assist

import (
	"strings"

	"github.com/Sumatoshi-tech/rustassist/pkg/textedit"
)

const (
	indent     = "    "
	tupleParam = "v"
)

// Synthesize builds the `From` impl for a classified variant. The edit
// inserts the impl right after the enum, separated by a blank line.
func Synthesize(classified *Classified) textedit.Edit {
	var sb strings.Builder

	sb.WriteString("\n\nimpl")

	if classified.Generics != nil {
		sb.WriteString(classified.Generics.Text)
	}

	sb.WriteString(" From<")
	sb.WriteString(classified.FieldType.Text)
	sb.WriteString("> for ")
	sb.WriteString(classified.EnumName)

	if classified.Generics != nil {
		sb.WriteString("<")
		sb.WriteString(strings.Join(classified.Generics.Names(), ", "))
		sb.WriteString(">")
	}

	param := tupleParam
	if classified.Named() {
		param = classified.FieldName
	}

	sb.WriteString(" {\n")
	sb.WriteString(indent + "fn from(" + param + ": " + classified.FieldType.Text + ") -> Self {\n")
	sb.WriteString(indent + indent + "Self::" + classified.VariantName)

	if classified.Named() {
		sb.WriteString(" { " + param + " }")
	} else {
		sb.WriteString("(" + param + ")")
	}

	sb.WriteString("\n" + indent + "}\n}")

	return textedit.Insert(classified.Enum.Range.End, sb.String())
}
