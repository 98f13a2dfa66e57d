package domain

import "errors"

var (
	// Ошибка отсутствующего имени покупателя.
	ErrCustomerNameRequired = errors.New("customer_name is required")
	// Ошибка отсутствующего телефона покупателя.
	ErrPhoneRequired = errors.New("phone is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum")
	// ErrOrderInvalid объединяет нарушения инвариантов заказа.
	ErrOrderInvalid = errors.New("order is invalid")
	// ErrCartEmpty возвращается при попытке оформить пустую корзину.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrCartPersist сигнализирует, что снимок корзины не удалось записать в хранилище.
	ErrCartPersist = errors.New("cart snapshot persist failed")
	// ErrKeyNotFound возвращается KV-хранилищем, если ключ отсутствует.
	ErrKeyNotFound = errors.New("key not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists возвращается при повторном создании заказа с тем же ID или тикетом.
	ErrOrderExists = errors.New("order already exists")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrStatusUnknown — статус не входит в перечень поддерживаемых.
	ErrStatusUnknown = errors.New("unknown order status")
	// ErrStatusTransition — переход между статусами запрещён.
	ErrStatusTransition = errors.New("order status transition is not allowed")
	// ErrProductNotFound возвращается, если товара нет в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductExists возвращается при создании товара с занятым ID.
	ErrProductExists = errors.New("product already exists")
	// ErrProductUnavailable — товара нет в наличии, в корзину его не добавить.
	ErrProductUnavailable = errors.New("product is out of stock")
	// ErrProductInvalid — товар каталога не прошёл валидацию.
	ErrProductInvalid = errors.New("product is invalid")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsNotFound сообщает, относится ли ошибка к отсутствующей сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrKeyNotFound)
}

// IsAlreadyExists сообщает, что сущность с таким идентификатором уже сохранена.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrOrderExists) || errors.Is(err, ErrProductExists)
}

// IsValidation сообщает, что ошибка вызвана некорректными входными данными.
func IsValidation(err error) bool {
	return errors.Is(err, ErrOrderInvalid) ||
		errors.Is(err, ErrProductInvalid) ||
		errors.Is(err, ErrStatusUnknown) ||
		errors.Is(err, ErrCustomerNameRequired) ||
		errors.Is(err, ErrPhoneRequired) ||
		errors.Is(err, ErrItemsRequired) ||
		errors.Is(err, ErrItemQtyInvalid) ||
		errors.Is(err, ErrItemPriceInvalid) ||
		errors.Is(err, ErrAmountMismatch)
}
