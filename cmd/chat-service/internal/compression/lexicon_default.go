package compression

// 与 \b 类似的边界，但把西里尔字母也当作单词字符
const (
	boundaryStart = `(?:^|[^\p{L}\p{N}_])`
	boundaryEnd   = `(?:[^\p{L}\p{N}_]|$)`
)

// DefaultLexicon 内置词库：俄语规则 + 常见英语人名标记
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Stopwords:          []string{"что", "как", "это", "для", "или", "при"},
		AchievementMarkers: `(?i)таким образом|итого|в результате|решение|ответ`,
		Intent: IntentLexicon{
			Goal: RuleTable{
				Rules: []Rule{
					{
						Pattern:  `как (сделать|создать|написать|реализовать|добавить)`,
						Capture:  `как (?:сделать|создать|написать|реализовать|добавить) ([^?.]+)`,
						Template: "Реализовать: %s",
						Result:   "Реализовать функционал",
					},
					{
						Pattern: boundaryStart + `(?:ошибка|не работает|проблема)` + boundaryEnd,
						Result:  "Решить проблему/ошибку",
					},
					{
						Pattern:  `что такое|расскажи|объясни|как работает`,
						Capture:  `(?:что такое|расскажи про|объясни|как работает) ([^?.]+)`,
						Template: "Изучить: %s",
						Result:   "Изучить концепцию",
					},
					{
						Pattern: `выбрать|сравни|лучше|или`,
						Result:  "Принять решение о выборе технологии/подхода",
					},
				},
				Default: "Общение и получение информации",
			},
			Motivation: RuleTable{
				Rules: []Rule{
					{Pattern: `проект|разработ|создаю|делаю`, Result: "Работа над проектом"},
					{Pattern: `учу|изуча|начина|новичок`, Result: "Обучение и развитие навыков"},
					{Pattern: `работа|задач|дедлайн|срочно`, Result: "Рабочая задача"},
					{Pattern: `интересн|любопытн|хочу понять`, Result: "Интерес и любопытство"},
				},
				Default: "Общее развитие",
			},
			// 后面的检查覆盖前面的，因此这里倒序排列
			Status: RuleTable{
				Rules: []Rule{
					{Pattern: `но|однако|всё равно|не понял`, Result: "Есть сложности в понимании"},
					{Pattern: `спасибо|понятно|отлично|получилось`, Result: "Вопрос решён, успешное завершение"},
					{Pattern: `уже|попробовал|сделал|написал`, Result: "Есть начальная реализация, требуется доработка"},
					{MinUserTurns: 6, Result: "Активное обсуждение, детализация вопросов"},
				},
				Default: "Начальный этап",
			},
			Blockers: []BlockerGroup{
				{
					Pattern: `не понима|не получается|не работает|ошибка`,
					Labels: []Rule{
						{Pattern: `не понима`, Result: "непонимание концепции"},
						{Pattern: `не получается|не работает`, Result: "технические проблемы"},
						{Pattern: `ошибка`, Result: "ошибки в коде"},
					},
				},
				{Pattern: `как лучше|не знаю|сомневаюсь|выбрать`, Result: "Неопределённость в выборе подхода"},
				{Pattern: `слож|труд|непонятно`, Result: "Высокая сложность темы"},
			},
			BlockersDefault: "Нет явных блокеров",
		},
		Profile: ProfileLexicon{
			BeginnerSignals:    `что такое|как работает|объясни простыми|не понимаю|для чайников|с нуля`,
			ExpertSignals:      `архитектур|оптимизац|производительность|deprecated|api|паттерн|рефакторинг|типизация`,
			PracticalSignals:   `пример|как сделать|покажи|реализ|код|практика`,
			TheoreticalSignals: `почему|как работает|принцип|теория|концепция|философия`,
			PoliteWords:        `пожалуйста|спасибо|благодарю|извините`,
			PositiveSignals:    `спасибо|отлично|супер|круто|замечательно|получилось|👍|😊|🎉`,
			NegativeSignals:    `не понял|не работает|ошибка|проблема|не получается|сложно|😕|😢|😤`,
			CuriousSignals:     `интересно|любопытно|расскажи подробнее|а что если|🤔|💡`,
			Triggers: []Rule{
				{Pattern: `без воды|конкретно|коротко`, Result: "Избегать длинных вводных частей"},
				{Pattern: `простыми словами|понятно|доступно`, Result: "Избегать сложной терминологии без объяснений"},
				{Pattern: `пример|покажи код`, Result: "Обязательно давать практические примеры"},
			},
			NegativeThreshold: 2,
			Labels: ProfileLabels{
				ExpertiseBeginner: "новичок (базовые концепции)",
				ExpertiseSenior:   "senior (продвинутый уровень)",
				ExpertiseMiddle:   "middle+ (уверенный практик)",
				ExpertiseDefault:  "middle (средний уровень)",

				ThinkingPractical:   "практик (learning by doing)",
				ThinkingTheoretical: "теоретик (сначала понять суть)",
				ThinkingDefault:     "balanced (сбалансированный)",

				CommunicationVerbose: "развёрнутый стиль, подробные формулировки",
				CommunicationBrief:   "краткий стиль, минимализм",
				CommunicationDefault: "neutral (нейтральный)",
				PoliteSuffix:         ", вежливый",
				DirectSuffix:         ", прямой",

				EmotionPositive: "доволен/восторжен",
				EmotionNegative: "расстроен/фрустрирован",
				EmotionCurious:  "заинтересован/увлечён",
				EmotionDefault:  "нейтрален",

				NegativeTrigger: "Проявлять особую внимательность, пользователь испытывает сложности",
			},
		},
		Scoring: ScoringLexicon{
			NameMarkers: []string{
				`(?i)меня зовут ([а-яёa-z]+)`,
				`(?i)зовут ([а-яёa-z]+)`,
				`(?i)пес ([а-яёa-z]+)`,
				`(?i)питомец ([а-яёa-z]+)`,
				`(?i)собака ([а-яёa-z]+)`,
				`(?i)кот ([а-яёa-z]+)`,
				`(?i)my name is ([a-z]+)`,
				`(?i)i am called ([a-z]+)`,
				`(?i)named ([a-z]+)`,
			},
			LocationMarkers: []string{
				`из ([А-ЯЁ][а-яё]+)`,
				`в городе ([А-ЯЁ][а-яё]+)`,
				`живу в ([А-ЯЁ][а-яё]+)`,
			},
			TechnicalTerms: []string{
				"React", "API", "OpenAI", "ChatGPT", "DALL", "NLP", "AI",
				"Redux", "Zustand", "Context", "TypeScript", "JavaScript",
				"Next", "Node", "Python", "Git", "GitHub", "CSS", "HTML",
				"ChatInterface", "RAG", "Gemini", "Cloud", "Yandex",
			},
			CausalConnectives: []string{
				"потому что", "из-за", "поэтому", "следовательно", "так как",
				"в результате", "благодаря", "причина", "привело к",
				"because", "therefore", "due to",
			},
			EmotionWords: []string{
				"рад", "доволен", "расстроен", "проблема", "отлично", "плохо",
				"интересно", "восторжен", "фрустрирован", "заинтересован",
				"спасибо", "молодец", "круто", "супер", "ужасно", "страшно",
			},
			EmotionLabels: []string{"нейтрален", "доволен", "заинтересован", "расстроен"},
		},
		Phrases: Phrases{
			EssenceSingle:   `Пользователь запросил информацию: "%s".`,
			EssenceStart:    `Диалог начался с: "%s...", `,
			EssenceTopic:    `перешёл к обсуждению: %s. `,
			EssenceFocus:    `Итоговый фокус: "%s..."`,
			EssenceNoUser:   `Системное сообщение или продолжение предыдущего контекста. Тема: %s`,
			TopicFallback:   "общее обсуждение",
			GenericEssence:  "Обсуждение темы",
			FocusedData:     "📌 Ключевое: ",
			FocusedLinks:    "🔗 Связи: ",
			FocusedEmotions: "💬 Эмоции: ",
		},
	}
}
