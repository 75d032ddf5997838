package assessment

import "placement-pipeline/internal/models"

// The static question bank assessments draw from. Drawn once per
// assessment; the snapshot never re-rolls.
var mcqBank = []models.MCQQuestion{
	{
		ID:            "mcq_1",
		Question:      "What is the time complexity of binary search?",
		Options:       []string{"O(n)", "O(log n)", "O(n^2)", "O(1)"},
		CorrectOption: 1,
	},
	{
		ID:            "mcq_2",
		Question:      "Which data structure uses LIFO principle?",
		Options:       []string{"Queue", "Stack", "Array", "Tree"},
		CorrectOption: 1,
	},
	{
		ID:       "mcq_3",
		Question: "What does REST stand for?",
		Options: []string{
			"Representational State Transfer",
			"Remote State Transfer",
			"Resource State Transfer",
			"Representational System Transfer",
		},
		CorrectOption: 0,
	},
	{
		ID:            "mcq_4",
		Question:      "Which HTTP method is used to update a resource?",
		Options:       []string{"GET", "POST", "PUT", "DELETE"},
		CorrectOption: 2,
	},
	{
		ID:       "mcq_5",
		Question: "What is the purpose of a primary key in a database?",
		Options: []string{
			"To uniquely identify a record",
			"To create an index",
			"To define relationships",
			"To encrypt data",
		},
		CorrectOption: 0,
	},
	{
		ID:       "mcq_6",
		Question: "What is polymorphism in OOP?",
		Options: []string{
			"Ability to take many forms",
			"Data hiding",
			"Code reusability",
			"Multiple inheritance",
		},
		CorrectOption: 0,
	},
	{
		ID:            "mcq_7",
		Question:      "Which sorting algorithm has best average case time complexity?",
		Options:       []string{"Bubble Sort", "Quick Sort", "Selection Sort", "Insertion Sort"},
		CorrectOption: 1,
	},
	{
		ID:            "mcq_8",
		Question:      "What is the default port for HTTPS?",
		Options:       []string{"80", "443", "8080", "3000"},
		CorrectOption: 1,
	},
}

var codingBank = []models.CodingProblem{
	{
		ID:          "code_1",
		Title:       "Two Sum",
		Description: "Given an array of integers nums and an integer target, return indices of the two numbers such that they add up to target.",
		Difficulty:  "Easy",
	},
	{
		ID:          "code_2",
		Title:       "Reverse String",
		Description: "Write a function that reverses a string. The input string is given as an array of characters.",
		Difficulty:  "Easy",
	},
	{
		ID:          "code_3",
		Title:       "Valid Palindrome",
		Description: "A phrase is a palindrome if, after converting all uppercase letters into lowercase letters and removing all non-alphanumeric characters, it reads the same forward and backward.",
		Difficulty:  "Easy",
	},
}
