package llm

import (
	"strings"
)

// Reference vocabulary the model maps abbreviations onto.
var cultures = []string{
	"Вика+Тритикале", "Горох на зерно", "Горох товарный", "Гуар", "Конопля",
	"Кориандр", "Кукуруза кормовая", "Кукуруза семенная", "Кукуруза товарная",
	"Люцерна", "Многолетние злаковые травы", "Многолетние травы прошлых лет",
	"Многолетние травы текущего года", "Овес", "Подсолнечник кондитерский",
	"Подсолнечник семенной", "Подсолнечник товарный", "Просо",
	"Пшеница озимая на зеленый корм", "Пшеница озимая семенная",
	"Пшеница озимая товарная", "Рапс озимый", "Рапс яровой", "Свекла сахарная",
	"Сорго", "Сорго кормовой", "Сорго-суданковый гибрид", "Соя семенная",
	"Соя товарная", "Чистый пар", "Чумиза", "Ячмень озимый",
	"Ячмень озимый семенной",
}

// divisions lists farm divisions and, for АОР, its production units (ПУ)
// and the departments (Отд) inside them.
var divisions = []struct {
	Name        string
	Unit        string
	Departments string
}{
	{"АОР", "Кавказ", "18, 19"},
	{"АОР", "Север", "3, 7, 10, 20"},
	{"АОР", "Центр", "1, 4, 5, 6, 9"},
	{"АОР", "Юг", "11, 12, 16, 17"},
	{"ТСК", "", ""},
	{"АО Кропоткинское", "", ""},
	{"Восход", "", ""},
	{"Колхоз Прогресс", "", ""},
	{"Мир", "", ""},
	{"СП Коломейцево", "", ""},
}

var operations = []string{
	"1-я междурядная культивация (на всех культурах кроме пшеницы, ячменя)",
	"2-я междурядная культивация (на всех культурах кроме пшеницы, ячменя)",
	"Боронование довсходовое", "Внесение минеральных удобрений",
	"Выравнивание зяби", "2-е Выравнивание зяби",
	"Гербицидная обработка (на свекле их 4, на остальных культурах 1)",
	"Дискование", "Дискование 2-е", "Инсектицидная обработка", "Культивация",
	"Пахота", "Подкормка", "Предпосевная культивация", "Прикатывание посевов",
	"Сев", "Сплошная культивация", "Уборка", "Функицидная обработка",
	"Чизлевание",
}

type example struct {
	input  string
	output string
}

var examples = []example{
	{
		input: "12.10\nВнесение мин удобрений под оз пшеницу 2025 г ПУ Юг 149/7264\nОтд 17 -149/1443",
		output: `{"table":[{"date":"12.10","division":"АОР","operation":"Внесение минеральных удобрений",` +
			`"culture":"Пшеница озимая товарная","per_day":149,"per_operation":7264,"val_day":null,"val_beginning":null}]}`,
	},
	{
		input: "Внесение удобрений под рапс отд 7\n-138/270\nДискование под рапс 40/172\nДиск после Кук сил отд 7 - 32/352 по пу 484га",
		output: `{"table":[` +
			`{"date":null,"division":"АОР","operation":"Внесение минеральных удобрений","culture":"Рапс озимый","per_day":138,"per_operation":270,"val_day":null,"val_beginning":null},` +
			`{"date":null,"division":"АОР","operation":"Дискование","culture":"Рапс озимый","per_day":40,"per_operation":172,"val_day":null,"val_beginning":null},` +
			`{"date":null,"division":"АОР","operation":"Дискование","culture":"Кукуруза кормовая","per_day":32,"per_operation":484,"val_day":null,"val_beginning":null}]}`,
	},
	{
		input: "Уборка свеклы 27.10. день\nОтд10 - 45/216\nПо ПУ 45/1569\nВал 1259680/6660630\nУрожайность 279.9/308.3",
		output: `{"table":[{"date":"27.10","division":"АОР","operation":"Уборка","culture":"Свекла сахарная",` +
			`"per_day":45,"per_operation":1569,"val_day":12596.8,"val_beginning":66606.3}]}`,
	},
}

const photoInstruction = "На фото отчёт о полевых работах. Извлеки из него таблицу операций."

var systemPrompt = buildSystemPrompt()

func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("Ты помощник агронома. Из сообщения о полевых работах извлеки таблицу операций " +
		"и верни только JSON вида {\"table\": [...]}. Поля строки: date (ДД.ММ или null), division, " +
		"operation, culture, per_day (га за день), per_operation (га с начала операции), " +
		"val_day и val_beginning (валовый сбор в центнерах или null). " +
		"Если указаны итоги по ПУ, используй их вместо строк по отделениям. " +
		"Сокращения приводи к названиям из справочников.\n\n")

	b.WriteString("Культуры:\n")
	for _, c := range cultures {
		b.WriteString("- " + c + "\n")
	}

	b.WriteString("\nПодразделения:\n")
	for _, d := range divisions {
		b.WriteString("- " + d.Name)
		if d.Unit != "" {
			b.WriteString(", ПУ " + d.Unit + ", отделения " + d.Departments)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nОперации:\n")
	for _, o := range operations {
		b.WriteString("- " + o + "\n")
	}

	b.WriteString("\nПримеры:\n")
	for _, e := range examples {
		b.WriteString("\nСообщение:\n" + e.input + "\nОтвет:\n" + e.output + "\n")
	}
	return b.String()
}
