package domain

import "errors"

var (
	// Ошибки входного запроса оптимизатора.
	ErrItemsRequired = errors.New("items are required")
	// ErrNoValidProducts — ни один product_id из запроса не найден в каталоге.
	ErrNoValidProducts = errors.New("no valid products found for given items")
	// ErrNoPurchasableItems — все позиции отброшены (нет стока, магазин не одобрен, нет замены).
	ErrNoPurchasableItems = errors.New("no purchasable items")
	// ErrNoApprovedMarts — после группировки не осталось ни одного одобренного магазина.
	ErrNoApprovedMarts = errors.New("no approved marts available")

	// ErrAddressNotFound возвращается, если адрес не найден или принадлежит другому пользователю.
	ErrAddressNotFound = errors.New("address not found")
	// ErrNoAddressOnFile возвращается, если у пользователя нет ни одного сохранённого адреса.
	ErrNoAddressOnFile = errors.New("no address on file")
	// ErrAddressNotGeocodable возвращается, если координаты адреса не удалось получить.
	ErrAddressNotGeocodable = errors.New("address could not be geocoded")
	// ErrAddressRequired — не передан адрес для геокодирования.
	ErrAddressRequired = errors.New("address is required")
	// ErrCouldNotGeocode — произвольный адрес из запроса поиска магазинов не распознан.
	ErrCouldNotGeocode = errors.New("could not geocode address")

	// ErrMartNotFound возвращается, если магазин отсутствует в каталоге.
	ErrMartNotFound = errors.New("mart not found")

	// Ошибки подтверждения плана.
	ErrPlanRequired = errors.New("plan with marts is required")
	// ErrAddressAndContactRequired — для подтверждения плана нужны address_id и contact_number.
	ErrAddressAndContactRequired = errors.New("address_id and contact_number are required")
	// ErrNoOrdersCreated — ни одна группа плана не превратилась в заказ.
	ErrNoOrdersCreated = errors.New("no orders were created from plan")

	// ErrShoppingListEmpty — пустой текст списка покупок.
	ErrShoppingListEmpty = errors.New("text required")

	// Инварианты заказа.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствующего магазина в заказе.
	ErrMartRequired = errors.New("mart_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrOrderItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка отрицательной стоимости доставки.
	ErrDeliveryChargeNegative = errors.New("delivery charge must be non-negative")
	// Ошибка несоответствия итога заказа сумме позиций и доставки.
	ErrTotalMismatch = errors.New("order total does not match items and delivery")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrInvalidStatusTransition — переход статуса запрещён жизненным циклом заказа.
	ErrInvalidStatusTransition = errors.New("invalid order status transition")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибка пустого idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// Ошибка пустого хэша запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже использован тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ уже использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different payload")
	// ErrIdempotencyKeyNotFound возвращается, если записи по ключу нет.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsIdempotencyConflict сообщает, что ключ идемпотентности уже занят.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
