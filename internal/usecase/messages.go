package usecase

import (
	"fmt"
	"strings"

	"condo-assistant/internal/domain"
)

const (
	msgInitialHint     = "¡Hola! Soy el asistente de tu administración. Escribe *Hola* para ver el menú."
	msgCompletedHint   = "Tu solicitud ya fue atendida. Escribe *Hola* para volver al menú principal."
	msgUnsupportedKind = "Por ahora solo puedo leer mensajes de texto, imágenes y documentos."
	msgInvalidEmail    = "Ese correo no parece válido. Escríbelo completo, por ejemplo: nombre@correo.com"
	msgAskUnit         = "Gracias. Ahora escribe el número de tu departamento o unidad."
	msgEmptyUnit       = "Necesito el número de tu departamento o unidad para continuar."
	msgExpectText      = "En este paso necesito una respuesta escrita."
	msgAskVoucher      = "Envía la foto o el PDF de tu comprobante de pago."
	msgVoucherReceived = "¡Recibimos tu comprobante! La administración lo revisará y te confirmará el pago."
	msgDocUnreachable  = "Lo sentimos, el documento no está disponible en este momento. Intenta más tarde o contacta a tu administración."
	msgApology         = "Lo sentimos, ocurrió un problema al procesar tu mensaje. Escribe *Hola* para intentarlo de nuevo."
	msgMediaRetry      = "No pudimos recibir tu archivo. Escribe *Hola* y vuelve a enviarlo, por favor."
	msgStatementReady  = "Aquí está tu estado de cuenta."
	statementFilename  = "estado-de-cuenta.pdf"
)

// ApologyText is the notice sent when a turn could not be completed.
const ApologyText = msgApology

func msgMenu() string {
	return strings.Join([]string{
		"¡Hola! ¿En qué te podemos ayudar? Responde con el número de la opción:",
		"1. Registrar un pago",
		"2. Consultar documentos del condominio",
		"3. Recibir mi estado de cuenta",
	}, "\n")
}

func msgInvalidMenu() string {
	return "No reconozco esa opción.\n" + msgMenu()
}

var flowIntro = map[domain.Flow]string{
	domain.FlowPayment:   "Vamos a registrar tu pago.",
	domain.FlowDocuments: "Vamos a buscar los documentos de tu condominio.",
	domain.FlowAccount:   "Vamos a preparar tu estado de cuenta.",
}

func msgAskEmail(f domain.Flow) string {
	return flowIntro[f] + " Primero, escribe el correo electrónico registrado con tu administración."
}

func msgNoMatch() string {
	return "No encontramos un registro con ese correo, departamento y este número de teléfono. " +
		"Revisa tus datos y escribe de nuevo tu correo electrónico."
}

func msgCandidates(cands []domain.Match) string {
	var b strings.Builder
	b.WriteString("Encontramos tu registro en varios condominios. Responde con el número del que quieres consultar:")
	for i, m := range cands {
		fmt.Fprintf(&b, "\n%d. %s", i+1, m.Label())
	}
	return b.String()
}

func msgInvalidCandidate(cands []domain.Match) string {
	return fmt.Sprintf("Responde con un número del 1 al %d.\n", len(cands)) + msgCandidates(cands)
}

func msgCharges(charges []domain.PendingCharge) string {
	var b strings.Builder
	b.WriteString("Estos son tus cargos pendientes:")
	for _, c := range charges {
		fmt.Fprintf(&b, "\n%d. %s: %s", c.Index, c.Concept, domain.FormatMoney(c.Amount))
	}
	b.WriteString("\n\nResponde con los números de los cargos que vas a pagar, separados por coma (por ejemplo: 1,2).")
	return b.String()
}

func msgInvalidCharges(invalid []string, n int) string {
	if len(invalid) == 0 {
		return fmt.Sprintf("Indica al menos un cargo con números del 1 al %d, separados por coma.", n)
	}
	return fmt.Sprintf("Estas opciones no son válidas: %s. Usa números del 1 al %d, separados por coma.",
		strings.Join(invalid, ", "), n)
}

const msgNoCharges = "No tienes cargos pendientes registrados. Si hiciste un pago, envía la foto o el PDF de tu comprobante."

func msgDocuments(docs []domain.DocumentEntry) string {
	var b strings.Builder
	b.WriteString("Estos son los documentos disponibles. Responde con el número del que necesitas:")
	for _, d := range docs {
		fmt.Fprintf(&b, "\n%d. %s", d.Index, d.Title)
	}
	return b.String()
}

func msgInvalidDocument(docs []domain.DocumentEntry) string {
	return fmt.Sprintf("Responde con un número del 1 al %d.\n", len(docs)) + msgDocuments(docs)
}

func msgNoDocuments(property string) string {
	if property == "" {
		return "Tu condominio todavía no tiene documentos publicados."
	}
	return property + " todavía no tiene documentos publicados."
}

func msgDocumentLink(title, link string) string {
	return fmt.Sprintf("%s: %s", title, link)
}

func msgStatementCaption(t domain.Totals) string {
	if t.Outstanding <= 0 {
		return msgStatementReady + " No tienes saldo pendiente."
	}
	return fmt.Sprintf("%s Saldo pendiente: %s.", msgStatementReady, domain.FormatMoney(t.Outstanding))
}
