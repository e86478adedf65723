package dashboard

// QuickQuery is a one-click sample question.
type QuickQuery struct {
	Label    string `json:"label"`
	Icon     string `json:"icon"`
	Hint     string `json:"hint"`
	Question string `json:"question"`
}

var quickQueries = []QuickQuery{
	{"Fever", "🤒", "Learn about fever symptoms", "What are the common causes of fever and when should I see a doctor?"},
	{"Diabetes", "💊", "Diabetes information", "What are the symptoms and treatment options for diabetes?"},
	{"Pneumonia", "🫁", "Pneumonia details", "What are the symptoms of pneumonia and how is it treated?"},
	{"Heart Disease", "❤️", "Cardiovascular health", "What are the warning signs of heart disease?"},
	{"Cancer", "🧬", "Cancer information", "What causes cancer and what are the prevention methods?"},
	{"Arthritis", "🦴", "Joint health", "What are the different types of arthritis and their treatments?"},
	{"Migraine", "🧠", "Headache information", "What triggers migraines and how can they be prevented?"},
	{"Blood Pressure", "🩺", "Hypertension info", "What is high blood pressure and how can it be managed?"},
	{"Asthma", "🫁", "Respiratory condition", "What are the symptoms of asthma and how is it managed?"},
	{"COVID-19", "🦠", "Coronavirus information", "What are the symptoms and prevention methods for COVID-19?"},
	{"Gastritis", "🍽️", "Digestive health", "What causes gastritis and what are the treatment options?"},
	{"Thyroid", "🧪", "Endocrine system", "What are the symptoms of thyroid disorders?"},
	{"Anxiety", "😰", "Mental health", "What are the symptoms and treatments for anxiety disorders?"},
	{"Anemia", "🩸", "Blood disorder", "What causes anemia and how can it be treated?"},
	{"Dental Health", "🦷", "Oral care", "What are common dental problems and how to prevent them?"},
	{"Eye Care", "👁️", "Vision health", "What are the signs of vision problems and when to see a doctor?"},
}

// QuickQueries returns the quick-start questions in display order.
func QuickQueries() []QuickQuery {
	out := make([]QuickQuery, len(quickQueries))
	copy(out, quickQueries)
	return out
}
