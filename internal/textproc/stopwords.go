package textproc

// stopWords holds folded French and English function words.
var stopWords = func() map[string]struct{} {
	words := []string{
		// French
		"alors", "au", "aucun", "aussi", "autre", "aux", "avec", "avoir", "bon", "car", "ce", "ceci",
		"cela", "ces", "cet", "cette", "ceux", "chaque", "ci", "comme", "comment", "dans", "des", "du",
		"dedans", "dehors", "depuis", "devrait", "doit", "donc", "dos", "elle", "elles", "en", "encore",
		"est", "et", "etaient", "etait", "etant", "ete", "etre", "eu", "fait", "faites", "fois", "font",
		"hors", "ici", "il", "ils", "je", "juste", "la", "le", "les", "leur", "leurs", "lui", "ma",
		"mais", "me", "meme", "memes", "mes", "moi", "mon", "ne", "nos", "notre", "nous", "on", "ont",
		"ou", "par", "parce", "pas", "peut", "peu", "plupart", "pour", "pourquoi", "quand", "que",
		"quel", "quelle", "quelles", "quels", "qui", "sa", "sans", "se", "ses", "seulement", "si",
		"sien", "son", "sont", "sous", "soyez", "sujet", "sur", "ta", "tandis", "tellement", "tels",
		"tes", "ton", "tous", "tout", "toute", "toutes", "tres", "trop", "tu", "une", "un", "unes",
		"uns", "vos", "votre", "vous", "vu", "ça", "avez", "avons", "sera", "seront", "etes",
		// English
		"about", "above", "after", "again", "against", "all", "and", "any", "are", "because", "been",
		"before", "being", "below", "between", "both", "but", "can", "could", "did", "does", "doing",
		"down", "during", "each", "few", "for", "from", "further", "had", "has", "have", "having",
		"her", "here", "hers", "herself", "him", "himself", "his", "how", "into", "its", "itself",
		"just", "more", "most", "myself", "nor", "not", "now", "off", "once", "only", "other", "our",
		"ours", "out", "over", "own", "same", "she", "should", "some", "such", "than", "that", "the",
		"their", "theirs", "them", "then", "there", "these", "they", "this", "those", "through",
		"too", "under", "until", "very", "was", "were", "what", "when", "where", "which", "while",
		"who", "whom", "why", "will", "with", "would", "you", "your", "yours", "yourself",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

func isStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}
