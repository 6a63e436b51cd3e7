package actions

// Canned replies. Chat users are Russian speaking.
const (
	textGreeting         = "Привет %s.\nВаш код верификации: %s"
	textConfirm          = "Пожалуйста подтвердите свой аккаунт.\nВведите на сайте следующий код: %s"
	textGoalsHeader      = "Список ваших целей:\n"
	textNoGoals          = "У вас нет активных целей"
	textNoCategories     = "У вас нет категорий"
	textCategoriesHeader = "Введите название категории:\n"
	textCategorySaved    = "Категория %s сохранена успешно, введите имя цели"
	textCategoryInvalid  = "Категория указана неверно, попробуйте еще раз, пожалуйста"
	textCategoryLost     = "Выбранная категория больше недоступна. "
	textEmptyTitle       = "Название цели не может быть пустым"
	textTitleTooLong     = "Название цели не может быть длиннее %d символов"
	textGoalCreated      = "Цель успешно создана и доступна по ссылке: %s"
	textRemovePrompt     = "Введите имя цели:\n"
	textGoalRemoved      = "Цель %s успешно удалена"
	textGoalNotFound     = "Не могу найти вашу цель с именем %s, проверьте данные"
	textCancelled        = "Запрос отменен успешно"
	TextUnknownCommand   = "Неизвестная команда"
	TextUnknownRequest   = "Неизвестный запрос"
	goalURLPath          = "/categories/goals?goal=%d"
)
