package order

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

const whatsAppBaseURL = "https://wa.me/"

// BuildWhatsAppMessage собирает текст заказа, который покупатель отправит пекарне.
// Названия товаров уже сохранены в заказе на языке покупателя.
func BuildWhatsAppMessage(order domain.Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "New order %s\n", order.Ticket)
	fmt.Fprintf(&b, "Name: %s\n", order.CustomerName)
	fmt.Fprintf(&b, "Phone: %s\n", order.Phone)
	if order.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", order.Address)
	}
	b.WriteString("Items:\n")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %s x%d = %s\n", item.Name, item.Qty, item.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(&b, "Total: %s", order.Total.StringFixed(2))
	if order.Note != "" {
		fmt.Fprintf(&b, "\nNote: %s", order.Note)
	}
	return b.String()
}

// BuildWhatsAppURL возвращает click-to-chat ссылку wa.me с предзаполненным текстом.
// Из номера остаются только цифры; пустой номер даёт ссылку без адресата.
func BuildWhatsAppURL(number, message string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)

	// wa.me не понимает "+" как пробел.
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return whatsAppBaseURL + digits + "?text=" + text
}
